package usage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Recorder writes usage logs off the request path. Logs enqueued while the
// buffer is full are dropped.
type Recorder struct {
	store  Store
	queue  chan *Log
	done   chan struct{}
	logger *zap.Logger
}

func NewRecorder(store Store, buffer int, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		store:  store,
		queue:  make(chan *Log, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (r *Recorder) Enqueue(log *Log) bool {
	select {
	case r.queue <- log:
		return true
	default:
		r.logger.Warn("usage queue full, dropping log",
			zap.String("request_id", log.RequestID),
			zap.String("operation", log.Operation))
		return false
	}
}

// Process drains the queue until ctx is cancelled, then flushes what is left.
func (r *Recorder) Process(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case log := <-r.queue:
			r.write(log)
		case <-ctx.Done():
			for {
				select {
				case log := <-r.queue:
					r.write(log)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until Process has returned.
func (r *Recorder) Wait() {
	<-r.done
}

func (r *Recorder) write(log *Log) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.store.LogUsage(ctx, log); err != nil {
		r.logger.Error("failed to write usage log", zap.Error(err), zap.String("request_id", log.RequestID))
	}
}
