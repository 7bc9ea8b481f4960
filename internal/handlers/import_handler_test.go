package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-service/internal/jobs"
	"catalog-service/internal/models"
	"catalog-service/internal/services"
)

type nopUpserter struct{}

func (nopUpserter) UpsertBatch(ctx context.Context, products []*models.Product) error {
	return nil
}

func setupImportRouter(t *testing.T, jobStore jobs.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := quietLogger()
	importer := services.NewImportService(nopUpserter{}, jobStore, nil, nil, 0, logger)
	handler := NewImportHandler(importer, jobStore, t.TempDir(), logger)
	router := gin.New()
	router.POST("/upload", handler.UploadCSV)
	router.GET("/job_status/:job_id", handler.GetJobStatus)
	router.GET("/products/import/template", handler.GetImportTemplate)
	return router
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadRejectsNonCSV(t *testing.T) {
	router := setupImportRouter(t, jobs.NewMemoryStore())

	body, contentType := multipartUpload(t, "products.xlsx", "not a csv")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_FORMAT", resp.Error.Code)
}

func TestUploadRequiresFile(t *testing.T) {
	router := setupImportRouter(t, jobs.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadStartsJob(t *testing.T) {
	jobStore := jobs.NewMemoryStore()
	router := setupImportRouter(t, jobStore)

	body, contentType := multipartUpload(t, "products.csv", "sku,name\nA1,Widget\n")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)

	// The job is registered before the response is written, so a poll
	// immediately after the upload never sees the unknown sentinel.
	status, ok, err := jobStore.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, []string{jobs.StateProcessing, jobs.StateCompleted}, status.Status)

	// The background job finishes quickly for a one-row file.
	require.Eventually(t, func() bool {
		status, _, _ := jobStore.Get(context.Background(), resp.JobID)
		return status.Status == jobs.StateCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJobStatusUnknownSentinel(t *testing.T) {
	router := setupImportRouter(t, jobs.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/job_status/never-issued", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"unknown","progress":0,"message":"Job not found"}`, w.Body.String())
}

func TestJobStatusReturnsStoredStatus(t *testing.T) {
	jobStore := jobs.NewMemoryStore()
	require.NoError(t, jobStore.Set(context.Background(), "job-1", jobs.Status{
		Status: jobs.StateProcessing, Progress: 42, Message: "Parsing CSV",
	}))
	router := setupImportRouter(t, jobStore)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/job_status/job-1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"processing","progress":42,"message":"Parsing CSV"}`, w.Body.String())
}

func TestImportTemplateJSON(t *testing.T) {
	router := setupImportRouter(t, jobs.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/products/import/template", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success  bool                  `json:"success"`
		Template models.ImportTemplate `json:"template"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "products", resp.Template.Entity)
	require.Len(t, resp.Template.Columns, 4)
	assert.Equal(t, "sku", resp.Template.Columns[0].Name)
	assert.True(t, resp.Template.Columns[0].Required)
}

func TestImportTemplateCSV(t *testing.T) {
	router := setupImportRouter(t, jobs.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/products/import/template?format=csv", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "sku,name,description,price", strings.TrimSpace(w.Body.String()))
}

func TestImportTemplateXLSX(t *testing.T) {
	router := setupImportRouter(t, jobs.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/products/import/template?format=xlsx", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.NotZero(t, w.Body.Len())
}
