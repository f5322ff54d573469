package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"spartan-crm/internal/twenty"
	"spartan-crm/pkg/logger"
)

// maxUploadSize caps one attachment body
const maxUploadSize = 10 << 20

func leadIDParam(c echo.Context) string {
	if id := c.QueryParam("leadId"); id != "" {
		return id
	}
	return c.QueryParam("lead_id")
}

// ListNotes handles GET /api/notes?leadId=
func (h *Handler) ListNotes(c echo.Context) error {
	log := logger.FromContext(c)

	leadID := leadIDParam(c)
	if leadID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "leadId is required"})
	}
	remote, _, err := h.remoteFor(c)
	if err != nil {
		return respond(c, err)
	}
	notes, err := remote.GetNotesForLead(c.Request().Context(), leadID)
	if err != nil {
		return remoteError(c, log, err, "failed to fetch notes")
	}
	return c.JSON(http.StatusOK, echo.Map{"data": notes})
}

// CreateNote handles POST /api/notes
func (h *Handler) CreateNote(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		LeadID string `json:"leadId"`
		Title  string `json:"title"`
		Body   string `json:"body"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse note request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.LeadID == "" {
		req.LeadID = leadIDParam(c)
	}
	if req.LeadID == "" || (strings.TrimSpace(req.Body) == "" && strings.TrimSpace(req.Title) == "") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "leadId and a title or body are required"})
	}

	remote, _, err := h.remoteFor(c)
	if err != nil {
		return respond(c, err)
	}
	note, err := remote.CreateNoteForLead(c.Request().Context(), req.LeadID, req.Title, req.Body)
	if err != nil {
		return remoteError(c, log, err, "failed to create note")
	}

	log.Info("Note created", zap.String("note_id", note.ID), zap.String("lead_id", req.LeadID))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Note created successfully",
		"data":    note,
	})
}

// ListTasks handles GET /api/tasks?leadId=
func (h *Handler) ListTasks(c echo.Context) error {
	log := logger.FromContext(c)

	leadID := leadIDParam(c)
	if leadID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "leadId is required"})
	}
	remote, _, err := h.remoteFor(c)
	if err != nil {
		return respond(c, err)
	}
	tasks, err := remote.GetTasksForLead(c.Request().Context(), leadID)
	if err != nil {
		return remoteError(c, log, err, "failed to fetch tasks")
	}
	return c.JSON(http.StatusOK, echo.Map{"data": tasks})
}

// CreateTask handles POST /api/tasks
func (h *Handler) CreateTask(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		LeadID string            `json:"leadId"`
		Title  string            `json:"title"`
		Body   string            `json:"body"`
		Status twenty.TaskStatus `json:"status"`
		DueAt  *time.Time        `json:"dueAt"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse task request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.LeadID == "" {
		req.LeadID = leadIDParam(c)
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.LeadID == "" || req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "leadId and title are required"})
	}
	if req.Status != "" && !req.Status.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be TODO, IN_PROGRESS or DONE"})
	}

	remote, _, err := h.remoteFor(c)
	if err != nil {
		return respond(c, err)
	}
	task, err := remote.CreateTask(c.Request().Context(), twenty.TaskInput{
		LeadID: req.LeadID,
		Title:  req.Title,
		Body:   req.Body,
		Status: req.Status,
		DueAt:  req.DueAt,
	})
	if err != nil {
		return remoteError(c, log, err, "failed to create task")
	}

	log.Info("Task created", zap.String("task_id", task.ID), zap.String("lead_id", req.LeadID))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Task created successfully",
		"data":    task,
	})
}

// UpdateTask handles PATCH /api/tasks/:id
func (h *Handler) UpdateTask(c echo.Context) error {
	log := logger.FromContext(c)

	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "task id is required"})
	}
	var upd twenty.TaskUpdate
	if err := c.Bind(&upd); err != nil {
		log.Error("Failed to parse task update", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be TODO, IN_PROGRESS or DONE"})
	}

	remote, _, err := h.remoteFor(c)
	if err != nil {
		return respond(c, err)
	}
	task, err := remote.UpdateTask(c.Request().Context(), id, upd)
	if err != nil {
		return remoteError(c, log, err, "failed to update task")
	}

	log.Info("Task updated", zap.String("task_id", task.ID))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Task updated successfully",
		"data":    task,
	})
}

// ListFiles handles GET /api/files?leadId=
func (h *Handler) ListFiles(c echo.Context) error {
	log := logger.FromContext(c)

	leadID := leadIDParam(c)
	if leadID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "leadId is required"})
	}
	remote, _, err := h.remoteFor(c)
	if err != nil {
		return respond(c, err)
	}
	files, err := remote.GetAttachmentsForLead(c.Request().Context(), leadID)
	if err != nil {
		return remoteError(c, log, err, "failed to fetch files")
	}
	return c.JSON(http.StatusOK, echo.Map{"data": files})
}

// UploadFile handles POST /api/files?leadId= with the multipart field "file"
func (h *Handler) UploadFile(c echo.Context) error {
	log := logger.FromContext(c)

	leadID := leadIDParam(c)
	if leadID == "" {
		leadID = c.FormValue("leadId")
	}
	if leadID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "leadId is required"})
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}
	if fh.Size > maxUploadSize {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large"})
	}
	src, err := fh.Open()
	if err != nil {
		log.Error("Failed to open uploaded file", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable file"})
	}
	defer src.Close()
	content, err := io.ReadAll(io.LimitReader(src, maxUploadSize+1))
	if err != nil {
		log.Error("Failed to read uploaded file", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable file"})
	}
	if len(content) > maxUploadSize {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large"})
	}

	contentType := fh.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}

	remote, _, err := h.remoteFor(c)
	if err != nil {
		return respond(c, err)
	}
	att, err := remote.UploadAttachment(c.Request().Context(), leadID, fh.Filename, contentType, content)
	if err != nil {
		return remoteError(c, log, err, "failed to upload file")
	}

	log.Info("File uploaded",
		zap.String("attachment_id", att.ID),
		zap.String("lead_id", leadID),
		zap.Int("size", len(content)))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "File uploaded successfully",
		"data":    att,
	})
}
