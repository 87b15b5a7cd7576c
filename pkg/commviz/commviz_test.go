package commviz

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dan-solli/commviz/pkg/cache"
	"github.com/dan-solli/commviz/pkg/diagram"
	"github.com/dan-solli/commviz/pkg/ingest"
	"github.com/dan-solli/commviz/pkg/metrics"
	"github.com/dan-solli/commviz/pkg/settings"
	"github.com/dan-solli/commviz/pkg/store"
	"github.com/dan-solli/commviz/pkg/trace"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const enronCSV = `date,p1,p1email,p1job,p2,p2email,p2job,type,sentiment
2001-05-01,alice,a@x.com,Manager,bob,b@x.com,Trader,TO,0.5
2001-04-01,bob,b@x.com,Trader,alice,a@x.com,Manager,CC,-0.2
2001-06-01,alice,a@x.com,Manager,carol,c@x.com,CEO,TO,0.1
2001-07-01,dave,d@x.com,Employee
`

// captureHandler is a slog.Handler that captures log records for test assertions
type captureHandler struct {
	records []slog.Record
	mu      sync.Mutex
}

func (h *captureHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *captureHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *captureHandler) WithGroup(_ string) slog.Handler {
	return h
}

func (h *captureHandler) getRecords() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := make([]slog.Record, len(h.records))
	copy(result, h.records)
	return result
}

// recordingExporter keeps exported traces in memory.
type recordingExporter struct {
	mu      sync.Mutex
	records []*trace.TraceRecord
}

func (e *recordingExporter) Export(_ context.Context, r *trace.TraceRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, r)
	return nil
}

func (e *recordingExporter) Close() error { return nil }

func (e *recordingExporter) last() *trace.TraceRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.records) == 0 {
		return nil
	}
	return e.records[len(e.records)-1]
}

// failingKV reads normally and fails every write.
type failingKV struct {
	store.KVStore
}

var errDiskFull = errors.New("disk full")

func (failingKV) Set(context.Context, string, []byte) error { return errDiskFull }
func (failingKV) Apply(context.Context, ...store.Mutation) error { return errDiskFull }
func (failingKV) Remove(context.Context, string) error { return errDiskFull }

func newTestCommviz(t *testing.T, kv store.KVStore) *Commviz {
	t.Helper()
	if kv == nil {
		kv = store.NewMemoryKV()
	}
	c, err := NewWithStore(Config{}, kv)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	c := newTestCommviz(t, nil)
	exporter := &recordingExporter{}
	c.WithTraceExporter(exporter)

	result, err := c.Import(ctx, "enron.csv", []byte(enronCSV), "")
	require.NoError(t, err)
	require.NotEmpty(t, result.ID)

	assert.Equal(t, "enron", result.Dataset.Name())
	assert.Equal(t, 3, result.Dataset.Graph().EdgeCount())
	assert.Equal(t, 3, result.Dataset.Graph().NodeCount())
	assert.Equal(t, 1, result.Stats.RowsSkipped)

	ids, err := c.Datasets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{result.ID}, ids)

	got, ok := c.GetDataset(ctx, result.ID)
	require.True(t, ok)
	assert.Same(t, result.Dataset, got)

	rec := exporter.last()
	require.NotNil(t, rec)
	assert.Equal(t, "import", rec.Operation)
	assert.Equal(t, "success", rec.Status)
	require.Len(t, rec.Spans, 3)
	assert.Equal(t, []string{"parse", "enrich", "store"},
		[]string{rec.Spans[0].Name, rec.Spans[1].Name, rec.Spans[2].Name})
	assert.Equal(t, int64(1), rec.Spans[0].Counters["rowsSkipped"])
	assert.Equal(t, result.ID, rec.IDs["datasetId"])
}

func TestImport_CallerSuppliedID(t *testing.T) {
	ctx := context.Background()
	c := newTestCommviz(t, nil)

	result, err := c.Import(ctx, "q3.CSV", []byte(enronCSV), "q3")
	require.NoError(t, err)
	assert.Equal(t, "q3", result.ID)

	_, ok := c.GetDataset(ctx, "q3")
	assert.True(t, ok)
}

func TestImport_GeneratedIDsDoNotCollide(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	c := newTestCommviz(t, kv)
	fixed := func() time.Time { return time.UnixMilli(1_700_000_012_345) }
	c.cache = cache.New(kv, cache.Config{Now: fixed})

	first, err := c.Import(ctx, "a.csv", []byte(enronCSV), "")
	require.NoError(t, err)
	second, err := c.Import(ctx, "b.csv", []byte(enronCSV), "")
	require.NoError(t, err)

	assert.Equal(t, "12345", first.ID)
	assert.Equal(t, "12345-1", second.ID)

	ids, err := c.Datasets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"12345", "12345-1"}, ids)

	ds, ok := c.GetDataset(ctx, "12345")
	require.True(t, ok)
	assert.Equal(t, "a", ds.Name())

	d1, err := c.CreateDiagram(ctx, first.ID, diagram.ArcDiagram)
	require.NoError(t, err)
	d2, err := c.CreateDiagram(ctx, first.ID, diagram.ArcDiagram)
	require.NoError(t, err)
	assert.Equal(t, "12345", d1.ID)
	assert.Equal(t, "12345-1", d2.ID)
}

func TestImport_FormatError(t *testing.T) {
	ctx := context.Background()
	c := newTestCommviz(t, nil)
	exporter := &recordingExporter{}
	c.WithTraceExporter(exporter)

	result, err := c.Import(ctx, "short.csv", []byte("a,b,c\n1,2,3\n"), "")
	assert.Nil(t, result)

	var formatErr *ingest.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, ErrTypeFormat, ClassifyError(err))

	ids, err := c.Datasets(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	rec := exporter.last()
	require.NotNil(t, rec)
	assert.Equal(t, "error", rec.Status)
	assert.Equal(t, ErrTypeFormat, rec.ErrorType)
}

func TestImport_StorageFailureKeepsDataset(t *testing.T) {
	ctx := context.Background()
	c := newTestCommviz(t, failingKV{KVStore: store.NewMemoryKV()})

	result, err := c.Import(ctx, "enron.csv", []byte(enronCSV), "ds1")
	var storageErr *store.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, ErrTypeStorage, ClassifyError(err))

	require.NotNil(t, result)
	got, ok := c.GetDataset(ctx, "ds1")
	require.True(t, ok)
	assert.Same(t, result.Dataset, got)
}

func TestImport_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	collector := metrics.NewCollector()
	c := newTestCommviz(t, nil).WithMetrics(collector)

	_, err := c.Import(ctx, "enron.csv", []byte(enronCSV), "")
	require.NoError(t, err)
	_, err = c.Import(ctx, "bad.csv", []byte(""), "")
	require.Error(t, err)

	count, err := testutil.GatherAndCount(collector.Registry(), "commviz_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count) // import/success and import/error

	count, err = testutil.GatherAndCount(collector.Registry(), "commviz_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestImportAsync(t *testing.T) {
	ctx := context.Background()
	c := newTestCommviz(t, nil)

	result := <-c.ImportAsync(ctx, "enron.csv", strings.NewReader(enronCSV), "async")
	require.NotNil(t, result)
	require.NoError(t, result.Err)
	assert.Equal(t, "async", result.ID)
	assert.Equal(t, 3, result.Dataset.Graph().EdgeCount())

	_, ok := c.GetDataset(ctx, "async")
	assert.True(t, ok)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestImportAsync_Errors(t *testing.T) {
	ctx := context.Background()
	c := newTestCommviz(t, nil)

	result := <-c.ImportAsync(ctx, "enron.csv", brokenReader{}, "x")
	var formatErr *ingest.FormatError
	assert.ErrorAs(t, result.Err, &formatErr)

	result = <-c.ImportAsync(ctx, "graph.gexf", strings.NewReader("<gexf"), "y")
	assert.ErrorAs(t, result.Err, &formatErr)
	assert.Nil(t, result.Dataset)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	result = <-c.ImportAsync(cancelled, "enron.csv", strings.NewReader(enronCSV), "z")
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestCreateDiagram(t *testing.T) {
	ctx := context.Background()
	c := newTestCommviz(t, nil)

	d1, err := c.CreateDiagram(ctx, "ds1", diagram.SunburstDiagram)
	require.NoError(t, err)
	d2, err := c.CreateDiagram(ctx, "ds1", diagram.ArcDiagram)
	require.NoError(t, err)

	assert.NotEqual(t, d1.ID, d2.ID)
	assert.Equal(t, "ds1", d1.GraphID)
	assert.Equal(t, "SunburstDiagram-"+d1.ID, d1.Name())
	assert.Equal(t, settings.GetDefaultSettings(diagram.SunburstDiagram), d1.SettingsSnapshot())

	ids, err := c.Diagrams(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{d1.ID, d2.ID}, ids)

	_, err = c.CreateDiagram(ctx, "ds1", "PieChart")
	assert.ErrorIs(t, err, diagram.ErrUnknownKind)
	assert.Equal(t, ErrTypeValidation, ClassifyError(err))
}

func TestChangeSetting_Validates(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	c := newTestCommviz(t, kv)

	d, err := c.CreateDiagram(ctx, "ds1", diagram.SunburstDiagram)
	require.NoError(t, err)

	notified := 0
	d.Subscribe(diagram.SubscriberFunc(func(*diagram.Diagram, string) { notified++ }))

	err = c.ChangeSetting(ctx, d, "height", 20)
	assert.ErrorIs(t, err, settings.ErrInvalidSettings)
	assert.Equal(t, ErrTypeValidation, ClassifyError(err))
	assert.Zero(t, notified)
	v, _ := d.Setting("height")
	assert.Equal(t, float64(4), v)

	require.NoError(t, c.ChangeSetting(ctx, d, "height", 7, "variety", "flame"))
	assert.Equal(t, 1, notified)

	c.Cache().EvictDiagram(d.ID)
	reloaded, ok := c.GetDiagram(ctx, d.ID)
	require.True(t, ok)
	v, _ = reloaded.Setting("height")
	assert.Equal(t, float64(7), v)
}

func TestChangeName(t *testing.T) {
	ctx := context.Background()
	c := newTestCommviz(t, nil)
	d, err := c.CreateDiagram(ctx, "ds1", diagram.MatrixDiagram)
	require.NoError(t, err)

	require.NoError(t, c.ChangeName(ctx, d, "who talks to whom"))
	c.Cache().EvictDiagram(d.ID)
	reloaded, ok := c.GetDiagram(ctx, d.ID)
	require.True(t, ok)
	assert.Equal(t, "who talks to whom", reloaded.Name())
}

func TestVisibleSettings(t *testing.T) {
	ctx := context.Background()
	c := newTestCommviz(t, nil)

	_, err := c.Import(ctx, "enron.csv", []byte(enronCSV), "ds1")
	require.NoError(t, err)
	d, err := c.CreateDiagram(ctx, "ds1", diagram.SunburstDiagram)
	require.NoError(t, err)

	visible, ok := c.VisibleSettings(ctx, d.ID)
	require.True(t, ok)
	for _, s := range visible {
		if s.ID == "root" {
			assert.Equal(t, []string{settings.NoRoot, "alice", "bob", "carol"}, s.Properties["options"])
		}
		if s.ID == "colourType" {
			assert.Equal(t, []string{"rainbow", "community", "email", "jobtitle"}, s.Properties["options"])
		}
	}

	_, ok = c.VisibleSettings(ctx, "missing")
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	c := newTestCommviz(t, nil)

	_, err := c.Import(ctx, "enron.csv", []byte(enronCSV), "ds1")
	require.NoError(t, err)
	d, err := c.CreateDiagram(ctx, "ds1", diagram.ArcDiagram)
	require.NoError(t, err)

	require.NoError(t, c.RemoveDataset(ctx, "ds1"))
	require.NoError(t, c.RemoveDiagram(ctx, d))

	ids, err := c.Datasets(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	_, ok := c.GetDataset(ctx, "ds1")
	assert.False(t, ok)
	_, ok = c.GetDiagram(ctx, d.ID)
	assert.False(t, ok)
}

func TestRemoveDiagramByIDAndSetInvisible(t *testing.T) {
	ctx := context.Background()
	c := newTestCommviz(t, nil)

	hidden, err := c.CreateDiagram(ctx, "ds1", diagram.ArcDiagram)
	require.NoError(t, err)
	removed, err := c.CreateDiagram(ctx, "ds1", diagram.MatrixDiagram)
	require.NoError(t, err)

	var changed []string
	hidden.Subscribe(diagram.SubscriberFunc(func(_ *diagram.Diagram, key string) {
		changed = append(changed, key)
	}))
	require.NoError(t, c.SetInvisible(ctx, hidden, true))
	assert.Equal(t, []string{"invisible"}, changed)

	c.Cache().EvictDiagram(hidden.ID)
	reloaded, ok := c.GetDiagram(ctx, hidden.ID)
	require.True(t, ok)
	assert.True(t, reloaded.Invisible())

	require.NoError(t, c.RemoveDiagramByID(ctx, removed.ID))
	_, ok = c.GetDiagram(ctx, removed.ID)
	assert.False(t, ok)
	ids, err := c.Diagrams(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{hidden.ID}, ids)
}

func TestWarm(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()

	first, err := NewWithStore(Config{}, kv)
	require.NoError(t, err)
	_, err = first.Import(ctx, "a.csv", []byte(enronCSV), "a")
	require.NoError(t, err)
	_, err = first.Import(ctx, "b.csv", []byte(enronCSV), "b")
	require.NoError(t, err)
	_, err = first.CreateDiagram(ctx, "a", diagram.ArcDiagram)
	require.NoError(t, err)

	// A listed id whose object is gone
	require.NoError(t, kv.Remove(ctx, "dataset-b"))

	second := newTestCommviz(t, kv)
	stats, err := second.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, WarmStats{Datasets: 1, Diagrams: 1, Missing: 1}, stats)

	ds, ok := second.GetDataset(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "a", ds.Name())
}

func TestWithLogger_LogsConfig(t *testing.T) {
	handler := &captureHandler{}
	c := newTestCommviz(t, nil)

	returned := c.WithLogger(slog.New(handler))
	assert.Same(t, c, returned)

	found := false
	for _, rec := range handler.getRecords() {
		if rec.Level != slog.LevelInfo {
			continue
		}
		rec.Attrs(func(attr slog.Attr) bool {
			if attr.Key == "backend" {
				found = true
			}
			return true
		})
	}
	assert.True(t, found, "expected startup config log with 'backend' attribute")
}

func TestWithLogger_NilSafe(t *testing.T) {
	ctx := context.Background()
	c := newTestCommviz(t, nil).WithLogger(nil).WithMetrics(nil).WithTraceExporter(nil)

	_, err := c.Import(ctx, "enron.csv", []byte(enronCSV), "")
	assert.NoError(t, err)
	_, err = c.Warm(ctx)
	assert.NoError(t, err)
}

func TestImport_LogsNoDatasetContent(t *testing.T) {
	ctx := context.Background()
	handler := &captureHandler{}
	c := newTestCommviz(t, nil).WithLogger(slog.New(handler))

	_, err := c.Import(ctx, "enron.csv", []byte(enronCSV), "")
	require.NoError(t, err)

	for _, rec := range handler.getRecords() {
		rec.Attrs(func(attr slog.Attr) bool {
			v := attr.Value.String()
			assert.NotContains(t, v, "@x.com")
			assert.NotContains(t, v, "alice")
			return true
		})
	}
}

func TestNew_Backends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	configs := map[string]Config{
		"default":       {},
		"memory":        {Backend: BackendMemory},
		"sqlite-file":   {Backend: BackendSQLite, DBPath: filepath.Join(dir, "commviz.db")},
		"badger-memory": {Backend: BackendBadger},
		"badger-dir":    {Backend: BackendBadger, DBPath: filepath.Join(dir, "badger")},
	}
	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			c, err := New(cfg)
			require.NoError(t, err)
			defer c.Close()

			_, err = c.Import(ctx, "enron.csv", []byte(enronCSV), "ds1")
			require.NoError(t, err)
			ids, err := c.Datasets(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"ds1"}, ids)
		})
	}

	_, err := New(Config{Backend: "cassandra"})
	assert.Error(t, err)
}

func TestNew_SQLitePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Backend: BackendSQLite, DBPath: filepath.Join(t.TempDir(), "commviz.db")}

	first, err := New(cfg)
	require.NoError(t, err)
	_, err = first.Import(ctx, "enron.csv", []byte(enronCSV), "ds1")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(cfg)
	require.NoError(t, err)
	defer second.Close()

	ds, ok := second.GetDataset(ctx, "ds1")
	require.True(t, ok)
	assert.Equal(t, 3, ds.Graph().EdgeCount())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, Config{LogFormat: "json"}).Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	NewLogger(&buf, Config{LogLevel: "warn"}).Info("hidden")
	assert.Empty(t, buf.String())

	buf.Reset()
	NewLogger(&buf, Config{}).Info("shown")
	assert.Contains(t, buf.String(), "shown")
}
