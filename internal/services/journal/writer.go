package journal

import (
	"log/slog"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// PointWriter is the non-blocking half of api.WriteAPI used by Writer.
type PointWriter interface {
	WritePoint(point *write.Point)
	Errors() <-chan error
	Flush()
}

var _ PointWriter = api.WriteAPI(nil)

// Writer wraps the async Influx write API and remembers when the last write
// error happened, for the health endpoints.
type Writer struct {
	api PointWriter
	log *slog.Logger

	mu      sync.RWMutex
	lastErr time.Time
	counts  map[EventType]int64
}

// NewWriter starts draining the async error channel of w.
func NewWriter(w PointWriter, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	ww := &Writer{
		api:     w,
		log:     log.With("component", "journal"),
		lastErr: time.Now().Add(-24 * time.Hour),
		counts:  make(map[EventType]int64),
	}
	go func() {
		for err := range w.Errors() {
			if err == nil {
				continue
			}
			ww.mu.Lock()
			ww.lastErr = time.Now()
			ww.mu.Unlock()
			ww.log.Warn("influx write error", "err", err)
		}
	}()
	return ww
}

func (w *Writer) Record(evt Event) {
	w.api.WritePoint(EventToPoint(evt))
	w.mu.Lock()
	w.counts[evt.Type]++
	w.mu.Unlock()
}

// LastErrorAge is the time since the last failed write.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

// Count is the number of events of type t recorded since start.
func (w *Writer) Count(t EventType) int64 {
	if w == nil {
		return 0
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.counts[t]
}

func (w *Writer) Flush() {
	w.api.Flush()
}
