package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"spartan-crm/internal/model"
	"spartan-crm/internal/repository"
	"spartan-crm/pkg/logger"
)

const leadSheet = "Leads"

var leadExportHeader = []string{
	"ID", "Name", "Email", "Phone", "Address", "City", "State", "Zip Code",
	"Status", "Source", "Assigned To", "Notes", "Twenty ID", "Created At",
}

var leadExportWidths = []float64{8, 28, 30, 18, 32, 18, 8, 10, 12, 16, 20, 40, 38, 20}

// ExportLeads handles GET /api/leads/export with the same filters as ListLeads
func (h *Handler) ExportLeads(c echo.Context) error {
	log := logger.FromContext(c)

	companyID, ok := companyScope(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "company context required"})
	}
	leads, err := h.Leads.List(c.Request().Context(), companyID, repository.LeadQuery{
		Status:     c.QueryParam("status"),
		AssignedTo: c.QueryParam("assignedTo"),
		Search:     c.QueryParam("search"),
	})
	if err != nil {
		return storeError(c, log, err, "lead")
	}

	data, err := leadWorkbook(leads)
	if err != nil {
		log.Error("Failed to build lead export", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "export failed"})
	}

	name := fmt.Sprintf("leads-%d-%s.xlsx", companyID, time.Now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func leadWorkbook(leads []model.LeadRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(leadSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, header := range leadExportHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(leadSheet, cell, header); err != nil {
			return nil, fmt.Errorf("header cell %s: %w", cell, err)
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(leadSheet, col, col, leadExportWidths[i]); err != nil {
			return nil, fmt.Errorf("column width: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(leadExportHeader), 1)
	if err := f.SetCellStyle(leadSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for r, l := range leads {
		twentyID := ""
		if l.TwentyID != nil {
			twentyID = *l.TwentyID
		}
		row := []any{
			l.ID, l.Name, l.Email, l.Phone, l.Address, l.City, l.State, l.ZipCode,
			l.Status, l.Source, l.AssignedTo, l.Notes, twentyID, l.CreatedAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(leadSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("row %d: %w", r+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
