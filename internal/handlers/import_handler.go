package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"catalog-service/internal/jobs"
	"catalog-service/internal/models"
	"catalog-service/internal/services"
)

type ImportHandler struct {
	importer  *services.ImportService
	jobs      jobs.Store
	uploadDir string
	logger    *logrus.Entry
}

func NewImportHandler(importer *services.ImportService, jobStore jobs.Store, uploadDir string, logger *logrus.Logger) *ImportHandler {
	return &ImportHandler{
		importer:  importer,
		jobs:      jobStore,
		uploadDir: uploadDir,
		logger:    logger.WithField("component", "import-handler"),
	}
}

// UploadCSV accepts a CSV file and launches a background import job
// @Summary Upload a CSV for import
// @Description Returns a job_id usable with /job_status/{job_id}
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} models.UploadResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /upload [post]
func (h *ImportHandler) UploadCSV(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "FILE_REQUIRED", Message: "Please upload a CSV file"},
		})
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "INVALID_FORMAT", Message: "Only CSV files are supported"},
		})
		return
	}

	jobID := uuid.New().String()
	filePath := filepath.Join(h.uploadDir, jobID+".csv")

	if err := h.saveUpload(file, filePath); err != nil {
		h.logger.WithError(err).Error("Failed to store uploaded file")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "UPLOAD_FAILED", Message: "Failed to store uploaded file"},
		})
		return
	}

	// Register the job before the response goes out so an immediate poll
	// cannot race the pipeline's own registration.
	if err := h.jobs.Set(c.Request.Context(), jobID, jobs.Status{
		Status:   jobs.StateProcessing,
		Progress: 0,
		Message:  "Parsing CSV",
	}); err != nil {
		h.logger.WithError(err).WithField("job_id", jobID).Warn("Failed to register job status")
	}

	// The request context dies with this response; the job gets its own.
	go h.importer.Run(context.Background(), filePath, jobID)

	c.JSON(http.StatusOK, models.UploadResponse{JobID: jobID})
}

func (h *ImportHandler) saveUpload(src io.Reader, filePath string) error {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	dst, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(filePath)
		return fmt.Errorf("failed to write upload file: %w", err)
	}
	return nil
}

// GetJobStatus reports the progress of an import job
// @Summary Poll import job status
// @Description Unknown job ids return the "unknown" sentinel, never an error
// @Tags import
// @Produce json
// @Param job_id path string true "Job ID"
// @Success 200 {object} jobs.Status
// @Router /job_status/{job_id} [get]
func (h *ImportHandler) GetJobStatus(c *gin.Context) {
	jobID := c.Param("job_id")

	status, ok, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		h.logger.WithError(err).WithField("job_id", jobID).Warn("Failed to read job status")
		ok = false
	}
	if !ok {
		c.JSON(http.StatusOK, jobs.Unknown())
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetImportTemplate returns the import template definition or file
// @Summary Download the import template
// @Tags import
// @Produce json
// @Param format query string false "json, csv or xlsx" default(json)
// @Success 200 {object} models.ImportTemplate
// @Router /products/import/template [get]
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	template := models.ProductImportTemplate()

	switch models.ImportFormat(c.DefaultQuery("format", "json")) {
	case models.ImportFormatCSV:
		h.writeCSVTemplate(c, template)
	case models.ImportFormatXLSX:
		h.writeXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "template": template})
	}
}

// writeCSVTemplate streams a header-only CSV template
func (h *ImportHandler) writeCSVTemplate(c *gin.Context, template models.ImportTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	writer.Write(headers)
}

// writeXLSXTemplate generates an Excel template with a column-reference sheet
func (h *ImportHandler) writeXLSXTemplate(c *gin.Context, template models.ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
	})

	for i, col := range template.Columns {
		cellName, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Name
		style := headerStyle
		if col.Required {
			headerText += " *"
			style = requiredStyle
		}
		f.SetCellValue(sheetName, cellName, headerText)
		f.SetCellStyle(sheetName, cellName, cellName, style)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 20)
	}

	f.NewSheet("Columns")
	f.SetCellValue("Columns", "A1", "Column")
	f.SetCellValue("Columns", "B1", "Description")
	f.SetCellValue("Columns", "C1", "Required")
	f.SetCellValue("Columns", "D1", "Example")
	for i, col := range template.Columns {
		row := i + 2
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Columns", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Columns", fmt.Sprintf("B%d", row), col.Description)
		f.SetCellValue("Columns", fmt.Sprintf("C%d", row), required)
		f.SetCellValue("Columns", fmt.Sprintf("D%d", row), col.Example)
	}
	f.SetColWidth("Columns", "A", "A", 20)
	f.SetColWidth("Columns", "B", "B", 60)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.xlsx")
	f.Write(c.Writer)
}
