package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Indexer is the reference index the jobs drive.
type Indexer interface {
	Rebuild(ctx context.Context) (int, error)
	OnModify(ctx context.Context, path, content string) error
	OnDelete(ctx context.Context, path string) error
	OnRename(ctx context.Context, oldPath, newPath string) error
}

// Reader loads vault files for modify jobs.
type Reader interface {
	Read(ctx context.Context, path string) (string, error)
}

// hashes remembers the content last indexed for each path so unchanged
// saves can be skipped.
type hashes struct {
	mu sync.Mutex
	m  map[string]string
}

func newHashes() *hashes {
	return &hashes{m: make(map[string]string)}
}

func (h *hashes) same(path, hash string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.m[path] == hash
}

func (h *hashes) set(path, hash string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.m[path] = hash
}

func (h *hashes) forget(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.m, path)
}

func (h *hashes) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.m)
}

// Worker processes a single index job.
type Worker struct {
	index   Indexer
	files   Reader
	hashes  *hashes
	log     *slog.Logger
	backoff func(attempt int) time.Duration
}

func NewWorker(index Indexer, files Reader, log *slog.Logger) *Worker {
	return &Worker{
		index:   index,
		files:   files,
		hashes:  newHashes(),
		log:     log,
		backoff: Backoff,
	}
}

// Process runs job to a final status.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "kind", job.Kind, "path", job.Path)

	job.SetStatus(StatusRunning, string(job.Kind))

	var content string
	if job.Kind == KindModify {
		var err error
		content, err = w.files.Read(ctx, job.Path)
		if err != nil {
			log.Error("read failed", "error", err)
			job.AddError(fmt.Sprintf("read: %s", err))
			job.SetStatus(StatusFailed, "reading")
			return
		}
		hash := ContentHashHex([]byte(content))
		job.setContentHash(hash)
		if w.hashes.same(job.Path, hash) {
			log.Info("content unchanged, skipping")
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	var lastErr error
	for attempt := range MaxRetries {
		job.IncrAttempts()
		lastErr = w.run(ctx, job, content)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		log.Warn("retryable index error", "attempt", attempt, "error", lastErr)
		if attempt == MaxRetries-1 {
			break
		}
		select {
		case <-time.After(w.backoff(attempt)):
			continue
		case <-ctx.Done():
			lastErr = ctx.Err()
		}
		break
	}
	if lastErr != nil {
		log.Error("index job failed", "error", lastErr)
		job.AddError(lastErr.Error())
		job.SetStatus(StatusFailed, string(job.Kind))
		return
	}

	switch job.Kind {
	case KindModify:
		w.hashes.set(job.Path, job.Snapshot().ContentHash)
	case KindDelete:
		w.hashes.forget(job.Path)
	case KindRename:
		w.hashes.forget(job.Path)
		w.hashes.forget(job.NewPath)
	case KindRebuild:
		w.hashes.reset()
	}
	log.Info("index job completed")
	job.SetStatus(StatusCompleted, "done")
}

func (w *Worker) run(ctx context.Context, job *Job, content string) error {
	switch job.Kind {
	case KindRebuild:
		n, err := w.index.Rebuild(ctx)
		if err != nil {
			return err
		}
		job.SetEntries(n)
		return nil
	case KindModify:
		return w.index.OnModify(ctx, job.Path, content)
	case KindDelete:
		return w.index.OnDelete(ctx, job.Path)
	case KindRename:
		return w.index.OnRename(ctx, job.Path, job.NewPath)
	}
	return fmt.Errorf("unknown job kind %q", job.Kind)
}
