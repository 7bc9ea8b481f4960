package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-service/internal/jobs"
	"catalog-service/internal/models"
)

// fakeUpserter records every committed batch. Batches are copied because
// the pipeline reuses its batch slice between commits.
type fakeUpserter struct {
	mu      sync.Mutex
	batches [][]models.Product
	failOn  int // fail the nth call (1-based), 0 = never
	calls   int
}

func (f *fakeUpserter) UpsertBatch(ctx context.Context, products []*models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn != 0 && f.calls == f.failOn {
		return assert.AnError
	}
	batch := make([]models.Product, len(products))
	for i, p := range products {
		batch[i] = *p
	}
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeUpserter) products() []models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Product
	for _, b := range f.batches {
		all = append(all, b...)
	}
	return all
}

// recordingJobStore keeps the full status history, newest last.
type recordingJobStore struct {
	mu      sync.Mutex
	history []jobs.Status
}

func (r *recordingJobStore) Set(ctx context.Context, jobID string, status jobs.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, status)
	return nil
}

func (r *recordingJobStore) Get(ctx context.Context, jobID string) (jobs.Status, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return jobs.Status{}, false, nil
	}
	return r.history[len(r.history)-1], true, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []string
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, eventType string, payload interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, eventType)
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestImportService(store *fakeUpserter, jobStore jobs.Store, dispatcher Dispatcher, batchSize int) *ImportService {
	logger := logrus.New()
	logger.SetOutput(&strings.Builder{})
	return NewImportService(store, jobStore, dispatcher, nil, batchSize, logger)
}

func TestImportRunUpsertsRows(t *testing.T) {
	store := &fakeUpserter{}
	jobStore := &recordingJobStore{}
	dispatcher := &recordingDispatcher{}
	svc := newTestImportService(store, jobStore, dispatcher, 0)

	path := writeCSV(t, "sku,name,price\nA1,Widget,9.99\na2,Gadget,\nB3,,19.50\n")
	svc.Run(context.Background(), path, "job-1")

	products := store.products()
	require.Len(t, products, 3)

	assert.Equal(t, "A1", products[0].SKU)
	require.NotNil(t, products[0].Name)
	assert.Equal(t, "Widget", *products[0].Name)
	require.NotNil(t, products[0].Price)
	assert.Equal(t, "9.99", products[0].Price.String())
	assert.True(t, products[0].Active)

	assert.Equal(t, "a2", products[1].SKU)
	assert.Nil(t, products[1].Price)

	assert.Nil(t, products[2].Name)
	require.NotNil(t, products[2].Price)
	assert.Equal(t, "19.5", products[2].Price.String())

	final, ok, err := jobStore.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, jobs.StateCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)

	assert.Equal(t, []string{models.EventImportCompleted}, dispatcher.events)
}

func TestImportRunDuplicateSKULastWriterWins(t *testing.T) {
	store := &fakeUpserter{}
	jobStore := &recordingJobStore{}
	svc := newTestImportService(store, jobStore, nil, 0)

	path := writeCSV(t, "sku,name,price\nA1,Widget,9.99\n,Ignore,5\nA1,Widget2,12.50\n")
	svc.Run(context.Background(), path, "job-dup")

	// Both A1 rows flow to the store in file order; the upsert keyed on
	// the normalized SKU makes the later row the surviving one. The
	// SKU-less row never reaches the store.
	products := store.products()
	require.Len(t, products, 2)
	assert.Equal(t, "A1", products[0].SKU)
	assert.Equal(t, "Widget", *products[0].Name)
	assert.Equal(t, "A1", products[1].SKU)
	assert.Equal(t, "Widget2", *products[1].Name)
	assert.Equal(t, "12.5", products[1].Price.String())

	final, _, _ := jobStore.Get(context.Background(), "job-dup")
	assert.Equal(t, jobs.StateCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
}

func TestImportRunSkipsBlankAndMissingSKURows(t *testing.T) {
	store := &fakeUpserter{}
	svc := newTestImportService(store, &recordingJobStore{}, nil, 0)

	path := writeCSV(t, "sku,name\nA1,Widget\n,Nameless\n   ,   \n\nB2,Second\n")
	svc.Run(context.Background(), path, "job-2")

	products := store.products()
	require.Len(t, products, 2)
	assert.Equal(t, "A1", products[0].SKU)
	assert.Equal(t, "B2", products[1].SKU)
}

func TestImportRunSKUOnlyRow(t *testing.T) {
	store := &fakeUpserter{}
	svc := newTestImportService(store, &recordingJobStore{}, nil, 0)

	path := writeCSV(t, "sku,name,description,price\nONLY-SKU,,,\n")
	svc.Run(context.Background(), path, "job-3")

	products := store.products()
	require.Len(t, products, 1)
	assert.Equal(t, "ONLY-SKU", products[0].SKU)
	assert.Nil(t, products[0].Name)
	assert.Nil(t, products[0].Description)
	assert.Nil(t, products[0].Price)
	assert.True(t, products[0].Active)
}

func TestImportRunInvalidPriceFailsJob(t *testing.T) {
	store := &fakeUpserter{}
	jobStore := &recordingJobStore{}
	dispatcher := &recordingDispatcher{}
	svc := newTestImportService(store, jobStore, dispatcher, 0)

	path := writeCSV(t, "sku,price\nA1,9.99\nA2,$12\n")
	svc.Run(context.Background(), path, "job-4")

	final, ok, err := jobStore.Get(context.Background(), "job-4")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, jobs.StateFailed, final.Status)
	assert.Equal(t, 0, final.Progress)
	assert.True(t, strings.HasPrefix(final.Message, "Import failed:"), final.Message)

	assert.Equal(t, []string{models.EventImportFailed}, dispatcher.events)
}

func TestImportRunHeaderOnlyFileCompletes(t *testing.T) {
	store := &fakeUpserter{}
	jobStore := &recordingJobStore{}
	svc := newTestImportService(store, jobStore, nil, 0)

	path := writeCSV(t, "sku,name,price\n")
	svc.Run(context.Background(), path, "job-5")

	assert.Empty(t, store.products())
	final, _, _ := jobStore.Get(context.Background(), "job-5")
	assert.Equal(t, jobs.StateCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
}

func TestImportRunCommitsInBatches(t *testing.T) {
	store := &fakeUpserter{}
	svc := newTestImportService(store, &recordingJobStore{}, nil, 2)

	path := writeCSV(t, "sku\nA\nB\nC\nD\nE\n")
	svc.Run(context.Background(), path, "job-6")

	require.Len(t, store.batches, 3)
	assert.Len(t, store.batches[0], 2)
	assert.Len(t, store.batches[1], 2)
	assert.Len(t, store.batches[2], 1)
}

func TestImportRunStorageErrorFailsJob(t *testing.T) {
	store := &fakeUpserter{failOn: 2}
	jobStore := &recordingJobStore{}
	svc := newTestImportService(store, jobStore, nil, 2)

	path := writeCSV(t, "sku\nA\nB\nC\nD\n")
	svc.Run(context.Background(), path, "job-7")

	final, _, _ := jobStore.Get(context.Background(), "job-7")
	assert.Equal(t, jobs.StateFailed, final.Status)
	// The first batch is already durable; rerunning the same file is safe
	// because every row write is an upsert.
	require.Len(t, store.batches, 1)
}

func TestImportRunProgressIsMonotonic(t *testing.T) {
	jobStore := &recordingJobStore{}
	svc := newTestImportService(&fakeUpserter{}, jobStore, nil, 0)

	path := writeCSV(t, "sku\nA\nB\nC\nD\nE\nF\nG\nH\nI\nJ\n")
	svc.Run(context.Background(), path, "job-8")

	last := -1
	for _, status := range jobStore.history {
		assert.GreaterOrEqual(t, status.Progress, last)
		last = status.Progress
	}
	assert.Equal(t, 100, jobStore.history[len(jobStore.history)-1].Progress)
}

func TestImportRunRemovesUploadedFile(t *testing.T) {
	svc := newTestImportService(&fakeUpserter{}, &recordingJobStore{}, nil, 0)

	path := writeCSV(t, "sku\nA1\n")
	svc.Run(context.Background(), path, "job-9")

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestImportRunRemovesFileOnFailure(t *testing.T) {
	svc := newTestImportService(&fakeUpserter{failOn: 1}, &recordingJobStore{}, nil, 0)

	path := writeCSV(t, "sku\nA1\n")
	svc.Run(context.Background(), path, "job-10")

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestImportRunIsIdempotent(t *testing.T) {
	store := &fakeUpserter{}
	svc := newTestImportService(store, &recordingJobStore{}, nil, 0)

	content := "sku,name\nA1,First\nB2,Second\n"
	svc.Run(context.Background(), writeCSV(t, content), "job-11")
	svc.Run(context.Background(), writeCSV(t, content), "job-12")

	// Same rows flow to the store both times; the upsert semantics of the
	// store make the second run a no-op on the database.
	products := store.products()
	require.Len(t, products, 4)
	assert.Equal(t, products[0].SKU, products[2].SKU)
	assert.Equal(t, products[1].SKU, products[3].SKU)
}

func TestImportRunInvalidUTF8DoesNotFail(t *testing.T) {
	store := &fakeUpserter{}
	jobStore := &recordingJobStore{}
	svc := newTestImportService(store, jobStore, nil, 0)

	path := writeCSV(t, "sku,name\nA1,Wid\xffget\n")
	svc.Run(context.Background(), path, "job-13")

	final, _, _ := jobStore.Get(context.Background(), "job-13")
	assert.Equal(t, jobs.StateCompleted, final.Status)
	require.Len(t, store.products(), 1)
}

func TestParsePrice(t *testing.T) {
	price, err := parsePrice(" 29.99 ")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, "29.99", price.String())

	price, err = parsePrice("")
	require.NoError(t, err)
	assert.Nil(t, price)

	_, err = parsePrice("abc")
	assert.Error(t, err)
}

func TestMapColumnsIsCaseInsensitive(t *testing.T) {
	columns := mapColumns([]string{" SKU ", "Name", "PRICE"})
	assert.Equal(t, 0, columns["sku"])
	assert.Equal(t, 1, columns["name"])
	assert.Equal(t, 2, columns["price"])
}
