package progress

import (
	"log/slog"
	"math"
	"sync"
)

// Sink receives advisory progress increments from the fetch and push
// phases. Implementations must tolerate concurrent calls; correctness of a
// sync never depends on a sink.
type Sink interface {
	Incr(percent float64, message string)
}

// Nop discards all progress.
type Nop struct{}

func (Nop) Incr(float64, string) {}

// Log accumulates a running percentage and reports each step through slog.
type Log struct {
	mu    sync.Mutex
	total float64
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Incr(percent float64, message string) {
	l.mu.Lock()
	l.total += percent
	total := l.total
	l.mu.Unlock()
	slog.Info("sync progress", "pct", math.Round(total*10)/10, "msg", message)
}
