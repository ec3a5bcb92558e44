package archive

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/config"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/metrics"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/model"
)

// deltaRow is one archived delta, denormalized for the feed_deltas table.
type deltaRow struct {
	ReceivedAt int64
	Topic      string
	Handle     int64
	Seq        int64
	Kind       string
	EntityID   string
	Removed    bool
	Payload    []byte
}

// RecorderStats counts recorder activity since start.
type RecorderStats struct {
	Enqueued int64
	Dropped  int64
	Inserts  int64
	Flushes  int64
	Errors   int64
}

// Recorder consumes merge batches and writes them to the archive in batches.
// Record never blocks the feed path: when the buffer is full the batch is
// dropped and counted.
type Recorder struct {
	cfg     config.ArchiveConfig
	db      *pgxpool.Pool
	logger  *slog.Logger
	metrics *metrics.Metrics

	input chan []deltaRow

	batch       []deltaRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats   RecorderStats
	statsMu sync.Mutex
}

// NewRecorder creates a delta recorder writing through the given pool.
func NewRecorder(cfg config.ArchiveConfig, db *pgxpool.Pool, logger *slog.Logger, m *metrics.Metrics) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:     cfg,
		db:      db,
		logger:  logger,
		metrics: m,
		input:   make(chan []deltaRow, cfg.BufferSize),
		batch:   make([]deltaRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming and flushing.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("archive recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop drains and flushes, bounded by ctx.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping archive recorder")

	if r.cancel != nil {
		r.cancel()
	}
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("archive recorder stopped")
	case <-ctx.Done():
		r.logger.Warn("archive recorder stop timed out")
	}

	// Final flush
	r.flush()

	return nil
}

// Record enqueues one merge batch for archival.
func (r *Recorder) Record(topic string, handle int64, deltas []model.Delta) {
	if len(deltas) == 0 {
		return
	}

	now := time.Now().UnixMicro()
	rows := make([]deltaRow, 0, len(deltas))
	for i := range deltas {
		payload, err := json.Marshal(&deltas[i])
		if err != nil {
			r.logger.Error("marshal archived delta", "error", err, "kind", deltas[i].Kind, "id", deltas[i].ID)
			continue
		}
		rows = append(rows, deltaRow{
			ReceivedAt: now,
			Topic:      topic,
			Handle:     handle,
			Seq:        deltas[i].Seq,
			Kind:       string(deltas[i].Kind),
			EntityID:   deltas[i].ID,
			Removed:    deltas[i].Removed,
			Payload:    payload,
		})
	}

	select {
	case r.input <- rows:
		r.statsMu.Lock()
		r.stats.Enqueued += int64(len(rows))
		r.statsMu.Unlock()
	default:
		r.statsMu.Lock()
		r.stats.Dropped += int64(len(rows))
		r.statsMu.Unlock()
		r.logger.Warn("archive buffer full, dropping batch", "count", len(rows))
	}
}

// Stats returns current counters.
func (r *Recorder) Stats() RecorderStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case rows := <-r.input:
			r.batchMu.Lock()
			r.batch = append(r.batch, rows...)
			shouldFlush := len(r.batch) >= r.cfg.BatchSize
			r.batchMu.Unlock()

			if shouldFlush {
				r.flush()
			}
		}
	}
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush()
		}
	}
}

// flush writes the current batch to the database.
func (r *Recorder) flush() {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := r.batch
	r.batch = make([]deltaRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	if err := r.batchInsert(batch); err != nil {
		r.logger.Error("archive batch insert failed", "error", err, "count", len(batch))
		r.statsMu.Lock()
		r.stats.Errors++
		r.statsMu.Unlock()
		return
	}

	r.statsMu.Lock()
	r.stats.Inserts += int64(len(batch))
	r.stats.Flushes++
	r.statsMu.Unlock()

	if r.metrics != nil {
		r.metrics.ArchiveBatchFlushes.Inc()
		r.metrics.ArchiveRowsWritten.Add(float64(len(batch)))
	}

	r.logger.Debug("flushed deltas",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

func (r *Recorder) batchInsert(rows []deltaRow) error {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO feed_deltas (received_at, topic, handle, seq, kind, entity_id, removed, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, row.ReceivedAt, row.Topic, row.Handle, row.Seq, row.Kind, row.EntityID, row.Removed, row.Payload)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
