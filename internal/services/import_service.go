package services

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"catalog-service/internal/events"
	"catalog-service/internal/jobs"
	"catalog-service/internal/models"
)

// DefaultBatchSize is the number of upserted rows per durable commit.
const DefaultBatchSize = 500

const parsingMessage = "Parsing CSV"

// ProductUpserter is the slice of the products store the pipeline needs:
// one transactional batch of atomic insert-or-update writes.
type ProductUpserter interface {
	UpsertBatch(ctx context.Context, products []*models.Product) error
}

// ImportService runs CSV import jobs off the request path. Each job owns
// its uploaded file and its job-status entry; jobs share only the storage
// layer and the job store.
type ImportService struct {
	store      ProductUpserter
	jobs       jobs.Store
	dispatcher Dispatcher
	publisher  *events.Publisher
	batchSize  int
	logger     *logrus.Entry
}

// NewImportService creates an import pipeline. dispatcher and publisher may
// be nil when webhook notification or NATS publishing is not configured.
func NewImportService(store ProductUpserter, jobStore jobs.Store, dispatcher Dispatcher, publisher *events.Publisher, batchSize int, logger *logrus.Logger) *ImportService {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ImportService{
		store:      store,
		jobs:       jobStore,
		dispatcher: dispatcher,
		publisher:  publisher,
		batchSize:  batchSize,
		logger:     logger.WithField("component", "import-service"),
	}
}

// Run imports the CSV file at filePath under the given job id. It publishes
// progress to the job store, commits upserts in batches, and removes the
// uploaded file on every exit path. Once launched a job runs to completion
// or failure; there is no cancellation.
func (s *ImportService) Run(ctx context.Context, filePath, jobID string) {
	defer func() {
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			s.logger.WithError(err).WithField("job_id", jobID).Warn("Failed to remove uploaded file")
		}
	}()

	// Register the job before any work so a poller can never observe
	// "not found" for a job whose upload already returned.
	s.setStatus(ctx, jobID, jobs.Status{Status: jobs.StateProcessing, Progress: 0, Message: parsingMessage})

	if err := s.runImport(ctx, filePath, jobID); err != nil {
		s.logger.WithError(err).WithField("job_id", jobID).Error("Import failed")
		s.setStatus(ctx, jobID, jobs.Status{Status: jobs.StateFailed, Progress: 0, Message: fmt.Sprintf("Import failed: %s", err.Error())})
		s.notify(ctx, jobID, false)
		return
	}

	s.setStatus(ctx, jobID, jobs.Status{Status: jobs.StateCompleted, Progress: 100, Message: "Import complete"})
	s.notify(ctx, jobID, true)
}

func (s *ImportService) runImport(ctx context.Context, filePath, jobID string) error {
	total, err := countDataRows(filePath)
	if err != nil {
		return err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer f.Close()

	// Invalid UTF-8 bytes are replaced rather than failing the job.
	reader := csv.NewReader(transform.NewReader(f, unicode.UTF8.NewDecoder()))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := mapColumns(header)

	batch := make([]*models.Product, 0, s.batchSize)
	processed := 0
	rowNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading line %d: %w", rowNum+1, err)
		}
		rowNum++

		sku := strings.TrimSpace(cell(record, columns, "sku"))
		if sku == "" || allBlank(record) {
			continue
		}

		price, err := parsePrice(cell(record, columns, "price"))
		if err != nil {
			return fmt.Errorf("row %d: %w", rowNum, err)
		}

		batch = append(batch, &models.Product{
			SKU:         sku,
			Name:        optionalString(cell(record, columns, "name")),
			Description: optionalString(cell(record, columns, "description")),
			Price:       price,
			Active:      true,
		})

		if len(batch) >= s.batchSize {
			if err := s.store.UpsertBatch(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}

		processed++
		if total > 0 {
			progress := processed * 100 / total
			s.setStatus(ctx, jobID, jobs.Status{Status: jobs.StateProcessing, Progress: progress, Message: parsingMessage})
		}
	}

	// Final commit of the remaining partial batch.
	return s.store.UpsertBatch(ctx, batch)
}

func (s *ImportService) setStatus(ctx context.Context, jobID string, status jobs.Status) {
	if err := s.jobs.Set(ctx, jobID, status); err != nil {
		s.logger.WithError(err).WithField("job_id", jobID).Warn("Failed to publish job status")
	}
}

// notify fires the terminal-transition notifications: webhook subscribers
// registered for the import event type, and the NATS audit stream.
func (s *ImportService) notify(ctx context.Context, jobID string, succeeded bool) {
	eventType := models.EventImportCompleted
	if !succeeded {
		eventType = models.EventImportFailed
	}
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, eventType, map[string]string{"job_id": jobID})
	}
	s.publisher.PublishImportFinished(jobID, succeeded)
}

// countDataRows counts the file's lines minus the header line.
func countDataRows(filePath string) (int, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lines := 0
	for scanner.Scan() {
		lines++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	if lines <= 1 {
		return 0, nil
	}
	return lines - 1, nil
}

// mapColumns builds a case-insensitive header-name to index mapping, so
// "sku" and "SKU" headers both resolve.
func mapColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, ok := columns[name]; !ok {
			columns[name] = i
		}
	}
	return columns
}

func cell(record []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func allBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parsePrice maps an empty cell to "no price"; anything else must be a
// plain decimal, and a currency symbol or other junk fails the job.
func parsePrice(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", raw, err)
	}
	return &price, nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
