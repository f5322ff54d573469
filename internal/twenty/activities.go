package twenty

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Note is a remote note linked to a lead
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaskStatus is the remote task workflow state
type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
)

// Valid reports whether s is a known task status
func (s TaskStatus) Valid() bool {
	return s == TaskTodo || s == TaskInProgress || s == TaskDone
}

// Task is a remote task linked to a lead
type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Status    TaskStatus `json:"status"`
	DueAt     *time.Time `json:"dueAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// TaskInput creates a task and links it to LeadID
type TaskInput struct {
	LeadID string
	Title  string
	Body   string
	Status TaskStatus
	DueAt  *time.Time
}

// TaskUpdate changes the non-nil fields of a task
type TaskUpdate struct {
	Title  *string     `json:"title,omitempty"`
	Body   *string     `json:"body,omitempty"`
	Status *TaskStatus `json:"status,omitempty"`
	DueAt  *time.Time  `json:"dueAt,omitempty"`
}

// GetNotesForLead lists the notes linked to leadID
func (c *Client) GetNotesForLead(ctx context.Context, leadID string) ([]Note, error) {
	var data struct {
		NoteTargets connection[struct {
			ID   string `json:"id"`
			Note *Note  `json:"note"`
		}] `json:"noteTargets"`
	}
	if err := c.execute(ctx, opNoteTargets, map[string]any{"leadId": leadID}, &data); err != nil {
		return nil, err
	}
	notes := make([]Note, 0, len(data.NoteTargets.Edges))
	for _, target := range data.NoteTargets.nodes() {
		if target.Note != nil {
			notes = append(notes, *target.Note)
		}
	}
	return notes, nil
}

// CreateNoteForLead creates a note then links it to leadID. A failed link is
// logged and the created note is still returned.
func (c *Client) CreateNoteForLead(ctx context.Context, leadID, title, body string) (*Note, error) {
	var data struct {
		CreateNote Note `json:"createNote"`
	}
	input := map[string]any{"title": title, "body": body}
	if err := c.execute(ctx, opCreateNote, map[string]any{"data": input}, &data); err != nil {
		return nil, err
	}
	note := data.CreateNote

	link := map[string]any{"noteId": note.ID, "leadId": leadID}
	if err := c.execute(ctx, opCreateNoteTarget, map[string]any{"data": link}, nil); err != nil {
		c.logger.Warn("Failed to link note to lead",
			zap.String("note_id", note.ID),
			zap.String("lead_id", leadID),
			zap.Error(err))
	}
	return &note, nil
}

// GetTasksForLead lists the tasks linked to leadID
func (c *Client) GetTasksForLead(ctx context.Context, leadID string) ([]Task, error) {
	var data struct {
		TaskTargets connection[struct {
			ID   string `json:"id"`
			Task *Task  `json:"task"`
		}] `json:"taskTargets"`
	}
	if err := c.execute(ctx, opTaskTargets, map[string]any{"leadId": leadID}, &data); err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(data.TaskTargets.Edges))
	for _, target := range data.TaskTargets.nodes() {
		if target.Task != nil {
			tasks = append(tasks, *target.Task)
		}
	}
	return tasks, nil
}

// CreateTask creates a task then links it to in.LeadID, same two-step shape as notes
func (c *Client) CreateTask(ctx context.Context, in TaskInput) (*Task, error) {
	status := in.Status
	if status == "" {
		status = TaskTodo
	}
	if !status.Valid() {
		return nil, fmt.Errorf("twenty CreateTask: unknown status %q", status)
	}

	input := map[string]any{"title": in.Title, "body": in.Body, "status": string(status)}
	if in.DueAt != nil {
		input["dueAt"] = in.DueAt.UTC().Format(time.RFC3339)
	}

	var data struct {
		CreateTask Task `json:"createTask"`
	}
	if err := c.execute(ctx, opCreateTask, map[string]any{"data": input}, &data); err != nil {
		return nil, err
	}
	task := data.CreateTask

	link := map[string]any{"taskId": task.ID, "leadId": in.LeadID}
	if err := c.execute(ctx, opCreateTaskTarget, map[string]any{"data": link}, nil); err != nil {
		c.logger.Warn("Failed to link task to lead",
			zap.String("task_id", task.ID),
			zap.String("lead_id", in.LeadID),
			zap.Error(err))
	}
	return &task, nil
}

// UpdateTask changes a task's title, body, status or due date
func (c *Client) UpdateTask(ctx context.Context, id string, upd TaskUpdate) (*Task, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, fmt.Errorf("twenty UpdateTask: unknown status %q", *upd.Status)
	}
	input := map[string]any{}
	if upd.Title != nil {
		input["title"] = *upd.Title
	}
	if upd.Body != nil {
		input["body"] = *upd.Body
	}
	if upd.Status != nil {
		input["status"] = string(*upd.Status)
	}
	if upd.DueAt != nil {
		input["dueAt"] = upd.DueAt.UTC().Format(time.RFC3339)
	}

	var data struct {
		UpdateTask *Task `json:"updateTask"`
	}
	if err := c.execute(ctx, opUpdateTask, map[string]any{"id": id, "data": input}, &data); err != nil {
		return nil, err
	}
	if data.UpdateTask == nil {
		return nil, ErrNotFound
	}
	return data.UpdateTask, nil
}
