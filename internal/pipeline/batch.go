package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-profiler/internal/metrics"
	"github.com/sells-group/company-profiler/internal/model"
	"github.com/sells-group/company-profiler/internal/scrape"
)

// Sink durably stores output rows. A failed Append aborts the batch.
type Sink interface {
	Append(row *model.OutputRow) error
}

// RunRecorder keeps an audit record of each company run. store.Store
// satisfies it.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *model.Run) error
}

// BatchOptions controls which rows run and how the fetcher is cycled.
type BatchOptions struct {
	BatchID      string
	StartRow     int           // first input row to process; 0 means all
	Limit        int           // max rows considered; 0 means no limit
	RecycleEvery int           // recycle the session after this many companies; 0 disables
	CompanyDelay time.Duration // pause before each company
}

// BatchSummary counts the outcomes of a batch.
type BatchSummary struct {
	BatchID   string
	Processed int
	Skipped   int
	Complete  int
	Degraded  int
	Failed    int
	TotalCost float64
}

// Batch feeds companies through a Pipeline in input order, sharing one
// fetcher session.
type Batch struct {
	pipeline *Pipeline
	sess     scrape.Session
	sink     Sink
	recorder RunRecorder
	opts     BatchOptions
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewBatch creates a Batch. recorder may be nil.
func NewBatch(p *Pipeline, sess scrape.Session, sink Sink, recorder RunRecorder, opts BatchOptions) *Batch {
	if opts.BatchID == "" {
		opts.BatchID = uuid.New().String()
	}
	return &Batch{
		pipeline: p,
		sess:     sess,
		sink:     sink,
		recorder: recorder,
		opts:     opts,
		sleep:    sleepCtx,
	}
}

// Run processes companies until the list is exhausted, the limit is
// reached or ctx is cancelled. Cancellation is only observed between
// companies.
func (b *Batch) Run(ctx context.Context, companies []model.Company) (*BatchSummary, error) {
	sum := &BatchSummary{BatchID: b.opts.BatchID}
	log := zap.L().With(zap.String("batch_id", b.opts.BatchID))
	log.Info("pipeline: batch starting", zap.Int("companies", len(companies)))

	considered := 0
	for _, c := range companies {
		if c.Row < b.opts.StartRow {
			continue
		}
		if b.opts.Limit > 0 && considered >= b.opts.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "pipeline: batch interrupted")
		}
		considered++

		if b.opts.CompanyDelay > 0 {
			if err := b.sleep(ctx, b.opts.CompanyDelay); err != nil {
				return sum, eris.Wrap(err, "pipeline: batch interrupted")
			}
		}

		row, ok := b.pipeline.Run(ctx, b.sess, c)
		if !ok {
			sum.Skipped++
			continue
		}

		if err := b.sink.Append(row); err != nil {
			return sum, eris.Wrapf(err, "pipeline: write row %d", c.Row)
		}
		b.record(ctx, log, row)
		sum.add(row)

		if b.opts.RecycleEvery > 0 && sum.Processed%b.opts.RecycleEvery == 0 {
			log.Info("pipeline: recycling session", zap.Int("processed", sum.Processed))
			metrics.ObserveRecycle()
			if err := b.sess.Recycle(ctx); err != nil {
				return sum, eris.Wrap(err, "pipeline: recycle session")
			}
		}
	}

	log.Info("pipeline: batch complete",
		zap.Int("processed", sum.Processed),
		zap.Int("skipped", sum.Skipped),
		zap.Int("degraded", sum.Degraded),
		zap.Int("failed", sum.Failed),
		zap.Float64("cost", sum.TotalCost),
	)
	return sum, nil
}

func (b *Batch) record(ctx context.Context, log *zap.Logger, row *model.OutputRow) {
	if b.recorder == nil {
		return
	}
	run := &model.Run{
		BatchID:   b.opts.BatchID,
		Company:   row.Company,
		Status:    row.Status,
		TotalCost: row.TotalCost,
		Result:    row,
	}
	if err := b.recorder.RecordRun(ctx, run); err != nil {
		log.Warn("pipeline: failed to record run", zap.Int("row", row.Company.Row), zap.Error(err))
	}
}

func (s *BatchSummary) add(row *model.OutputRow) {
	s.Processed++
	s.TotalCost += row.TotalCost
	switch row.Status {
	case model.RunStatusComplete:
		s.Complete++
	case model.RunStatusDegraded:
		s.Degraded++
	default:
		s.Failed++
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
