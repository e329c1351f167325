package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tunarag/internal/models"
)

// ErrStoreUnavailable reports that the backing conversation store could not
// be reached or errored. Fatal for the current request.
var ErrStoreUnavailable = errors.New("conversation store unavailable")

// Store is the key-value capability the manager needs from the history
// backend. internal/redis.Client satisfies it.
type Store interface {
	Incr(ctx context.Context, key string) (int64, error)
	// ExpireNX sets a TTL only when the key exists and has none yet.
	ExpireNX(ctx context.Context, key string, ttl time.Duration) error
	RPush(ctx context.Context, key string, value string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// Manager owns session-id allocation and conversation-history read/write.
// Safe for concurrent use; atomicity comes from the store primitives.
type Manager struct {
	store  Store
	prefix string
	ttl    time.Duration
	window int
}

// NewManager constructs a Manager. window is the number of most recent
// turns GetHistory returns.
func NewManager(store Store, prefix string, ttl time.Duration, window int) (*Manager, error) {
	if store == nil {
		return nil, errors.New("store required")
	}
	if prefix == "" {
		prefix = "session"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if window <= 0 {
		window = 3
	}
	return &Manager{store: store, prefix: prefix, ttl: ttl, window: window}, nil
}

// CreateSession allocates the next sequential session id for the prefix.
// Ids are strictly increasing per prefix because the counter increment is
// atomic at the store level. The session key itself does not exist until the
// first turn is appended; the TTL attaches at that point (EXPIRE on a
// missing key is a no-op, so setting it here would silently do nothing).
func (m *Manager) CreateSession(ctx context.Context) (string, error) {
	counterKey := fmt.Sprintf("%s:counter", m.prefix)
	seq, err := m.store.Incr(ctx, counterKey)
	if err != nil {
		return "", fmt.Errorf("%w: increment session counter: %v", ErrStoreUnavailable, err)
	}
	return fmt.Sprintf("%s:%06d", m.prefix, seq), nil
}

// GetHistory returns the most recent turns for the session, oldest first.
// A session with no history (never used or expired) yields an empty slice,
// not an error.
func (m *Manager) GetHistory(ctx context.Context, sessionID string) ([]models.Turn, error) {
	raw, err := m.store.LRange(ctx, sessionID, int64(-m.window), -1)
	if err != nil {
		return nil, fmt.Errorf("%w: read history: %v", ErrStoreUnavailable, err)
	}
	turns := make([]models.Turn, 0, len(raw))
	for _, item := range raw {
		var turn models.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("%w: decode turn: %v", ErrStoreUnavailable, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// AppendTurn appends the turn to the end of the session's history. The
// first append materializes the session key and arms its TTL; later appends
// leave the TTL untouched (NX), so the conversation window stays bound to
// the expiry armed when the session was first used.
func (m *Manager) AppendTurn(ctx context.Context, sessionID string, turn models.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	if err := m.store.RPush(ctx, sessionID, string(data)); err != nil {
		return fmt.Errorf("%w: append turn: %v", ErrStoreUnavailable, err)
	}
	if err := m.store.ExpireNX(ctx, sessionID, m.ttl); err != nil {
		return fmt.Errorf("%w: arm session expiry: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Window exposes the configured history window size.
func (m *Manager) Window() int {
	return m.window
}
