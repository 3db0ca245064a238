package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FolioSim/internal/domain/models"
)

type fakePublisher struct {
	mu      sync.Mutex
	records []*models.RunRecord
	err     error
	closed  bool
}

func (f *fakePublisher) Publish(ctx context.Context, rec *models.RunRecord) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.records = append(f.records, rec)
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

type fakeArchive struct {
	mu         sync.Mutex
	records    []*models.RunRecord
	rows       []*models.RunSummary
	storeErr   error
	queryCalls int
	lastFrom   time.Time
	lastTo     time.Time
	lastLimit  int
	closed     bool
}

func (f *fakeArchive) Init(ctx context.Context) error { return nil }

func (f *fakeArchive) Store(ctx context.Context, rec *models.RunRecord) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.mu.Lock()
	f.records = append(f.records, rec)
	f.mu.Unlock()
	return nil
}

func (f *fakeArchive) Query(ctx context.Context, from, to time.Time, limit int) ([]*models.RunSummary, error) {
	f.mu.Lock()
	f.queryCalls++
	f.lastFrom, f.lastTo, f.lastLimit = from, to, limit
	f.mu.Unlock()
	return f.rows, nil
}

func (f *fakeArchive) Health(ctx context.Context) error { return nil }

func (f *fakeArchive) Close() error {
	f.closed = true
	return nil
}

func testRecord(id string) *models.RunRecord {
	return &models.RunRecord{
		ID:         id,
		Timestamp:  time.Now().UTC(),
		Parameters: testRequest(),
		Statistics: &models.Statistics{MeanFinalValue: 12_000},
		ElapsedMS:  42,
	}
}

func TestRecorderRoutesToKafka(t *testing.T) {
	pub := &fakePublisher{}
	archive := &fakeArchive{}
	r := NewRunRecorder(pub, archive, newFakeMetrics(), "kafka")

	require.NoError(t, r.Record(context.Background(), testRecord("run-1")))

	assert.Len(t, pub.records, 1)
	assert.Empty(t, archive.records)
}

func TestRecorderRoutesToClickHouse(t *testing.T) {
	pub := &fakePublisher{}
	archive := &fakeArchive{}
	r := NewRunRecorder(pub, archive, newFakeMetrics(), "clickhouse")

	require.NoError(t, r.Record(context.Background(), testRecord("run-1")))

	assert.Empty(t, pub.records)
	assert.Len(t, archive.records, 1)
}

func TestRecorderRejectsUnknownBackend(t *testing.T) {
	metrics := newFakeMetrics()
	r := NewRunRecorder(&fakePublisher{}, &fakeArchive{}, metrics, "postgres")

	err := r.Record(context.Background(), testRecord("run-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
	assert.Equal(t, 1, metrics.errs["record"])
}

func TestRecorderRejectsNilRecords(t *testing.T) {
	r := NewRunRecorder(&fakePublisher{}, &fakeArchive{}, newFakeMetrics(), "kafka")
	require.Error(t, r.Record(context.Background(), nil))
}

func TestRecorderCloseClosesBackends(t *testing.T) {
	pub := &fakePublisher{}
	archive := &fakeArchive{}
	r := NewRunRecorder(pub, archive, newFakeMetrics(), "kafka")

	r.Close()
	assert.True(t, pub.closed)
	assert.True(t, archive.closed)
}

func TestKafkaRunsHandlerArchivesEvents(t *testing.T) {
	archive := &fakeArchive{}
	h := NewKafkaRunsHandler("runs.completed", archive, newFakeMetrics())
	assert.Equal(t, "runs.completed", h.Topic())

	raw, err := json.Marshal(testRecord("run-7"))
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), raw))
	require.Len(t, archive.records, 1)
	assert.Equal(t, "run-7", archive.records[0].ID)
}

func TestKafkaRunsHandlerRejectsGarbage(t *testing.T) {
	metrics := newFakeMetrics()
	h := NewKafkaRunsHandler("runs.completed", &fakeArchive{}, metrics)

	require.Error(t, h.Handle(context.Background(), []byte("{not json")))
	assert.Equal(t, 1, metrics.errs["consumer_unmarshal"])
}

func TestKafkaRunsHandlerReportsStoreFailures(t *testing.T) {
	metrics := newFakeMetrics()
	archive := &fakeArchive{storeErr: errors.New("insert failed")}
	h := NewKafkaRunsHandler("runs.completed", archive, metrics)

	raw, err := json.Marshal(testRecord("run-7"))
	require.NoError(t, err)

	require.Error(t, h.Handle(context.Background(), raw))
	assert.Equal(t, 1, metrics.errs["consumer_store"])
}
