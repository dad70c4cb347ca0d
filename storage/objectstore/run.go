package vendor

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// Job performs the transfer. progress may be called from any goroutine.
type Job func(ctx context.Context, progress func(percent int)) (*StoredFile, error)

// Start runs job on its own goroutine and adapts it to the callback contract of
// Adapter.UploadFile. Progress is clamped to 0..100 and never reported twice for the same or a
// lower value.
func Start(parent context.Context, job Job, onProgress func(int), onSuccess func(*StoredFile), onError func(error)) CancelFunc {
	ctx, cancel := context.WithCancel(parent)

	var finished atomic.Bool
	var mu sync.Mutex
	last := -1

	progress := func(p int) {
		if finished.Load() || onProgress == nil {
			return
		}
		p = min(max(p, 0), 100)

		mu.Lock()
		if p <= last {
			mu.Unlock()
			return
		}
		last = p
		mu.Unlock()

		onProgress(p)
	}

	go func() {
		defer cancel()

		stored, err := job(ctx, progress)
		if err == nil {
			progress(100)
		}

		if !finished.CompareAndSwap(false, true) {
			return
		}

		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}

		if onSuccess != nil {
			onSuccess(stored)
		}
	}()

	return func() {
		finished.Store(true)
		cancel()
	}
}

// ProgressReader reports the share of total bytes read so far as an integer percentage.
type ProgressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report func(int)
}

func NewProgressReader(r io.Reader, total int64, report func(int)) *ProgressReader {
	return &ProgressReader{r: r, total: total, report: report}
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 && pr.total > 0 && pr.report != nil {
		pr.read += int64(n)
		pr.report(int(min(pr.read*100/pr.total, 100)))
	}
	return n, err
}
