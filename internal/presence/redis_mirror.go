package presence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// presence key: presence:<user>, value: session id, TTL bounds staleness when
// the process dies without unbinding.
func presenceKey(userID string) string { return "presence:" + userID }

// compare-and-delete so an old session cannot remove a newer binding
// KEYS[1] = presence key
// ARGV[1] = session id
const luaUnbind = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type mirrorOp struct {
	entry Entry
	bound bool
}

// RedisMirror publishes registry state to Redis for other services. Registry
// callbacks only enqueue; a single worker applies operations in order.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
	queue  chan mirrorOp
	unbind *redis.Script
	log    *zap.Logger
	done   chan struct{}
}

// NewRedisMirror constructs a mirror. Call Run to start applying updates.
func NewRedisMirror(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisMirror {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisMirror{
		client: client,
		ttl:    ttl,
		queue:  make(chan mirrorOp, 1024),
		unbind: redis.NewScript(luaUnbind),
		log:    log.Named("presence.redis"),
		done:   make(chan struct{}),
	}
}

// Bound implements Observer.
func (m *RedisMirror) Bound(e Entry) { m.enqueue(mirrorOp{entry: e, bound: true}) }

// Unbound implements Observer.
func (m *RedisMirror) Unbound(e Entry) { m.enqueue(mirrorOp{entry: e}) }

// Touch implements Toucher.
func (m *RedisMirror) Touch(e Entry) { m.enqueue(mirrorOp{entry: e, bound: true}) }

func (m *RedisMirror) enqueue(op mirrorOp) {
	select {
	case m.queue <- op:
	default:
		m.log.Warn("presence mirror queue full, dropping update", zap.String("user_id", op.entry.UserID))
	}
}

// Run applies queued updates until ctx is cancelled.
func (m *RedisMirror) Run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-m.queue:
			if err := m.apply(ctx, op); err != nil {
				m.log.Warn("presence mirror update failed", zap.String("user_id", op.entry.UserID), zap.Error(err))
			}
		}
	}
}

// Done is closed when Run returns.
func (m *RedisMirror) Done() <-chan struct{} { return m.done }

func (m *RedisMirror) apply(ctx context.Context, op mirrorOp) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	key := presenceKey(op.entry.UserID)
	if op.bound {
		return m.client.Set(ctx, key, op.entry.SessionID, m.ttl).Err()
	}
	return m.unbind.Run(ctx, m.client, []string{key}, op.entry.SessionID).Err()
}

// Online reports whether userID has a live session on some delivery process.
func (m *RedisMirror) Online(ctx context.Context, userID string) (bool, error) {
	n, err := m.client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
