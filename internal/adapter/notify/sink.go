package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

// LogSink writes notifications to the log. A delivery channel (push, email)
// plugs in behind the same interface later; the throttle below applies to any
// implementation wrapped by Throttled.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink creates a new logging notification sink
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{log: logger}
}

// Notify logs the notification
func (s *LogSink) Notify(ctx context.Context, userID uuid.UUID, kind string, payload map[string]string) error {
	s.log.Info("notification",
		zap.String("user_id", userID.String()),
		zap.String("kind", kind),
		zap.Any("payload", payload))
	return nil
}

// Throttled wraps a sink with a per-user, per-kind sliding window so a burst
// of identical events does not flood the user. Suppressed deliveries are
// dropped silently; notifications are best-effort by contract.
type Throttled struct {
	next   domain.NotificationSink
	window time.Duration
	limit  int

	mu   sync.Mutex
	sent map[throttleKey][]time.Time
	log  *zap.Logger
}

type throttleKey struct {
	userID uuid.UUID
	kind   string
}

// NewThrottled creates a throttling wrapper allowing limit deliveries per key
// within the window
func NewThrottled(next domain.NotificationSink, window time.Duration, limit int, logger *zap.Logger) *Throttled {
	return &Throttled{
		next:   next,
		window: window,
		limit:  limit,
		sent:   make(map[throttleKey][]time.Time),
		log:    logger,
	}
}

// Notify delivers unless the key's window is already full
func (t *Throttled) Notify(ctx context.Context, userID uuid.UUID, kind string, payload map[string]string) error {
	if !t.allow(throttleKey{userID: userID, kind: kind}, time.Now()) {
		t.log.Debug("notification suppressed",
			zap.String("user_id", userID.String()),
			zap.String("kind", kind))
		return nil
	}
	return t.next.Notify(ctx, userID, kind, payload)
}

func (t *Throttled) allow(key throttleKey, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := now.Add(-t.window)
	recent := t.sent[key][:0]
	for _, at := range t.sent[key] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}

	if len(recent) >= t.limit {
		t.sent[key] = recent
		return false
	}

	t.sent[key] = append(recent, now)

	// Drop keys that have gone completely quiet so the map does not grow
	// unbounded
	if len(t.sent) > 10000 {
		for k, times := range t.sent {
			if len(times) == 0 || !times[len(times)-1].After(cutoff) {
				delete(t.sent, k)
			}
		}
	}

	return true
}

var _ domain.NotificationSink = (*LogSink)(nil)
var _ domain.NotificationSink = (*Throttled)(nil)
