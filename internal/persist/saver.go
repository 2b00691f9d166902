package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/arbor/internal/checksum"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/storage"
)

// Status reports how far persistence has caught up with the editor.
type Status struct {
	PendingRevision uint64    `json:"pending_revision"`
	SavedRevision   uint64    `json:"saved_revision"`
	SavedAt         time.Time `json:"saved_at,omitzero"`
	Failures        int       `json:"failures"`
	LastError       string    `json:"last_error,omitempty"`
}

// SaverOption configures a Saver.
type SaverOption func(*Saver)

// WithDebounce delays each write so that bursts of edits collapse into one.
func WithDebounce(d time.Duration) SaverOption {
	return func(s *Saver) { s.debounce = d }
}

// WithRetryInterval sets how long to wait before retrying a failed write.
func WithRetryInterval(d time.Duration) SaverOption {
	return func(s *Saver) { s.retry = d }
}

// WithSaverLogger sets the logger.
func WithSaverLogger(l *slog.Logger) SaverOption {
	return func(s *Saver) { s.logger = l }
}

// OnError registers a hook called after every failed write.
func OnError(fn func(error)) SaverOption {
	return func(s *Saver) { s.onError = fn }
}

// OnSaved registers a hook called after every successful write.
func OnSaved(fn func(f models.Forest, revision uint64)) SaverOption {
	return func(s *Saver) { s.onSaved = fn }
}

// Saver writes the newest forest revision to the store in the background.
// Notify never blocks; only the latest revision is ever written, older ones
// still queued are skipped. Failed writes are logged, reported through the
// OnError hook and retried, while editing carries on.
type Saver struct {
	store    storage.Store
	key      string
	debounce time.Duration
	retry    time.Duration
	logger   *slog.Logger
	onError  func(error)
	onSaved  func(models.Forest, uint64)

	wake    chan struct{}
	flushMu sync.Mutex

	mu        sync.Mutex
	latest    models.Forest
	latestRev uint64
	lastSum   string
	status    Status
}

// NewSaver creates a saver writing to key in store.
func NewSaver(store storage.Store, key string, opts ...SaverOption) *Saver {
	s := &Saver{
		store:  store,
		key:    key,
		retry:  5 * time.Second,
		logger: slog.Default(),
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed records the snapshot the editor started from so it is not written back.
func (s *Saver) Seed(snap Snapshot, revision uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = snap.Forest
	s.latestRev = revision
	s.lastSum = snap.Checksum
	s.status.PendingRevision = revision
	s.status.SavedRevision = revision
}

// Notify hands over a committed forest revision. Revisions not newer than
// the last one seen are ignored.
func (s *Saver) Notify(f models.Forest, revision uint64) {
	s.mu.Lock()
	if revision <= s.latestRev {
		s.mu.Unlock()
		return
	}
	s.latest = f
	s.latestRev = revision
	s.status.PendingRevision = revision
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Remember marks sum as the checksum of what the store currently holds,
// e.g. after the stored copy was changed by someone else.
func (s *Saver) Remember(sum string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSum = sum
}

// LastChecksum returns the checksum of the last bytes written or remembered.
func (s *Saver) LastChecksum() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSum
}

// Status returns a copy of the current persistence status.
func (s *Saver) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Run writes notified revisions until ctx is cancelled, then flushes the
// latest one.
func (s *Saver) Run(ctx context.Context) error {
	var retry <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return s.Flush(flushCtx)

		case <-s.wake:
			if s.debounce > 0 {
				t := time.NewTimer(s.debounce)
				select {
				case <-t.C:
				case <-ctx.Done():
					t.Stop()
					continue
				}
			}

		case <-retry:
		}

		if err := s.Flush(ctx); err != nil {
			retry = time.After(s.retry)
		} else {
			retry = nil
		}
	}
}

// Flush synchronously writes the latest revision if it has not been saved.
func (s *Saver) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	f, rev, lastSum := s.latest, s.latestRev, s.lastSum
	saved := s.status.SavedRevision
	s.mu.Unlock()
	if rev <= saved {
		return nil
	}

	data, err := Encode(f)
	var sum string
	if err == nil {
		sum = checksum.Sum(data)
		if sum != lastSum {
			err = s.store.Put(ctx, s.key, data)
		}
	}

	s.mu.Lock()
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
		s.mu.Unlock()

		s.logger.Warn("persist: save failed",
			slog.Uint64("revision", rev),
			slog.String("key", s.key),
			slog.String("error", err.Error()))
		if s.onError != nil {
			s.onError(err)
		}
		return fmt.Errorf("persist: save revision %d: %w", rev, err)
	}
	s.lastSum = sum
	s.status.SavedRevision = rev
	s.status.SavedAt = time.Now()
	s.status.LastError = ""
	s.mu.Unlock()

	s.logger.Debug("persist: saved",
		slog.Uint64("revision", rev),
		slog.String("key", s.key),
		slog.Int("bytes", len(data)))
	if s.onSaved != nil {
		s.onSaved(f, rev)
	}
	return nil
}
