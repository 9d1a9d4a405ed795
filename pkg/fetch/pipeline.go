package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"sellsync/pkg/platform"
)

// ErrCountUnavailable indicates the platform would not report its catalog
// size; the fetch pipeline cannot plan pagination and fails fast.
var ErrCountUnavailable = errors.New("platform did not report a listing count")

// Options selects the scope of a pipeline run.
type Options struct {
	// Sample caps the run to a few pages for quick previews.
	Sample bool
	// Persist writes fetched listings to the catalog store as pages arrive.
	Persist bool
	// Cap bounds the number of pages fetched when > 0.
	Cap int
	// Concurrency bounds simultaneous page/chunk requests. Defaults to 4.
	Concurrency int
}

func (o Options) concurrency() int {
	if o.Concurrency <= 0 {
		return 4
	}
	return o.Concurrency
}

// numPages is ceil(total/pageSize); zero listings mean zero pages.
func numPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

func chunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// retryOnce runs fn and, when it fails transiently, repeats the identical
// request exactly once before promoting the error to fatal.
func retryOnce(fn func() ([]byte, error)) ([]byte, error) {
	out, err := fn()
	if err == nil || !transient(err) {
		return out, err
	}
	slog.Warn("transient upstream error, retrying once", "err", err)
	return fn()
}

// transient covers the documented flaky 400s, throttling, server errors and
// timed-out calls. Auth and structural failures are never transient.
func transient(err error) bool {
	var se *platform.StatusError
	if errors.As(err, &se) {
		return se.Code == 400 || se.Code == 429 || se.Code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
