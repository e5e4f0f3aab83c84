package analyzer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/product-analyzer/internal/model"
)

// ResultWriter persists task records. store.Store implements it.
type ResultWriter interface {
	SaveTaskResults(ctx context.Context, records []model.TaskRecord) error
}

// StoreSink drains task events into a ResultWriter. Write failures are
// logged and never reach the analysis run.
type StoreSink struct {
	writer ResultWriter
	now    func() time.Time
}

// NewStoreSink creates a sink writing to w.
func NewStoreSink(w ResultWriter) *StoreSink {
	return &StoreSink{writer: w, now: time.Now}
}

// Run consumes events until the channel is closed. It returns the number of
// records written. ctx only bounds the writes; Run keeps draining after ctx
// ends so publishers never block.
func (s *StoreSink) Run(ctx context.Context, events <-chan model.TaskEvent) int {
	var written int
	for ev := range events {
		if ctx.Err() != nil {
			continue
		}
		rec := model.RecordFromEvent(ev)
		rec.ID = uuid.NewString()
		rec.CreatedAt = s.now().UTC()
		if err := s.writer.SaveTaskResults(ctx, []model.TaskRecord{rec}); err != nil {
			zap.L().Warn("analyzer: save task result failed",
				zap.String("run_id", ev.RunID),
				zap.String("task", ev.Result.TaskID),
				zap.Error(err),
			)
			continue
		}
		written++
	}
	return written
}

// Start runs the sink in a goroutine and returns the event channel along
// with a function that closes it and waits for the sink to finish.
func (s *StoreSink) Start(ctx context.Context, buffer int) (chan<- model.TaskEvent, func() int) {
	events := make(chan model.TaskEvent, buffer)
	done := make(chan int, 1)
	go func() {
		done <- s.Run(ctx, events)
	}()
	return events, func() int {
		close(events)
		return <-done
	}
}
