package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FolioSim/internal/domain/models"
	domrepo "FolioSim/internal/domain/repository"
)

// Sink is the minimal downstream interface the pipeline needs.
type Sink interface {
	Record(ctx context.Context, rec *models.RunRecord) error
}

// ArchivePipeline sits between the simulate path and the archive backend. A
// completed run must never fail its request because the backend is down, so
// failed records are buffered and flushed in the background with backoff.
type ArchivePipeline struct {
	sink       Sink
	metrics    domrepo.Metrics
	bufSize    int
	backoffMin time.Duration
	backoffMax time.Duration
	bufCh      chan *models.RunRecord
	stopCh     chan struct{}
	started    bool
	mu         sync.Mutex
}

type PipelineOption func(*ArchivePipeline)

// WithBufferSize sets the buffer capacity used while the backend is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *ArchivePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBackoff bounds the retry backoff of the background flusher.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *ArchivePipeline) {
		if min > 0 && max >= min {
			p.backoffMin = min
			p.backoffMax = max
		}
	}
}

// NewArchivePipeline creates a new pipeline in front of sink.
func NewArchivePipeline(sink Sink, metrics domrepo.Metrics, opts ...PipelineOption) *ArchivePipeline {
	p := &ArchivePipeline{
		sink:       sink,
		metrics:    metrics,
		bufSize:    256,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.RunRecord, p.bufSize)
	return p
}

// Start launches background flushing of buffered records. A stopped
// pipeline can be started again; buffered records survive the restart.
func (p *ArchivePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	go func() {
		backoff := p.backoffMin
		for {
			select {
			case <-stopCh:
				return
			case rec := <-p.bufCh:
				if rec == nil {
					continue
				}
				if err := p.sink.Record(ctx, rec); err != nil {
					if backoff < p.backoffMax {
						backoff *= 2
					}
					p.metrics.RecordError("archive_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- rec:
					default:
						p.metrics.RecordError("archive_buffer_drop")
					}
				} else {
					backoff = p.backoffMin
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *ArchivePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Record validates and forwards a completed run downstream, buffering it for
// the background flusher when the backend rejects it.
func (p *ArchivePipeline) Record(ctx context.Context, rec *models.RunRecord) error {
	start := time.Now()
	if err := validateRecord(rec); err != nil {
		p.metrics.RecordError("archive_validate")
		return err
	}

	if err := p.sink.Record(ctx, rec); err != nil {
		p.metrics.RecordError("archive_record")
		// buffer non-blocking
		select {
		case p.bufCh <- rec:
		default:
			p.metrics.RecordError("archive_buffer_full")
		}
		return fmt.Errorf("archive downstream: %w", err)
	}
	p.metrics.RecordLatency("archive_record", time.Since(start).Seconds())
	return nil
}

func validateRecord(rec *models.RunRecord) error {
	if rec == nil {
		return fmt.Errorf("run record nil")
	}
	if rec.ID == "" {
		return fmt.Errorf("run id empty")
	}
	if rec.Timestamp.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	if rec.Statistics == nil {
		return fmt.Errorf("statistics missing")
	}
	return nil
}
