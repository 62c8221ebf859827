package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	redisclient "github.com/angelmondragon/storefront-backend/pkg/redis"
)

var (
	ErrSessionNotFound  = errors.New("guest session not found")
	ErrInvalidSessionID = errors.New("invalid guest session id")
)

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	GuestSessionKey(sessionID string) string
}

// Record is the persisted state of an anonymous visitor.
type Record struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// GuestManager creates and refreshes guest sessions in Redis with a sliding TTL.
type GuestManager struct {
	store sessionStore
	keyer sessionKeyer
	ttl   time.Duration
	now   func() time.Time
}

// Resolver exposes the surface needed by the guest session middleware.
type Resolver interface {
	Resolve(ctx context.Context, sessionID string) (Record, bool, error)
}

// NewGuestManager constructs a guest session manager backed by Redis.
func NewGuestManager(client *redisclient.Client, cfg config.SessionConfig) (*GuestManager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.GuestTTL <= 0 {
		return nil, fmt.Errorf("guest session ttl must be positive")
	}
	return &GuestManager{
		store: client,
		keyer: client,
		ttl:   cfg.GuestTTL,
		now:   time.Now,
	}, nil
}

// NewSessionID produces an opaque guest session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether the value looks like an issued session id.
func ValidSessionID(sessionID string) bool {
	_, err := uuid.Parse(strings.TrimSpace(sessionID))
	return err == nil
}

// Create starts a new guest session.
func (m *GuestManager) Create(ctx context.Context) (Record, error) {
	now := m.now().UTC()
	record := Record{
		SessionID:    NewSessionID(),
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := m.save(ctx, record); err != nil {
		return Record{}, err
	}
	return record, nil
}

// Get loads a guest session without refreshing it.
func (m *GuestManager) Get(ctx context.Context, sessionID string) (Record, error) {
	if !ValidSessionID(sessionID) {
		return Record{}, ErrInvalidSessionID
	}
	raw, err := m.store.Get(ctx, m.keyer.GuestSessionKey(sessionID))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return Record{}, ErrSessionNotFound
		}
		return Record{}, err
	}
	return decodeRecord(sessionID, raw)
}

// Touch records activity and slides the expiry window forward.
func (m *GuestManager) Touch(ctx context.Context, sessionID string) (Record, error) {
	record, err := m.Get(ctx, sessionID)
	if err != nil {
		return Record{}, err
	}
	record.LastActivity = m.now().UTC()
	if err := m.save(ctx, record); err != nil {
		return Record{}, err
	}
	return record, nil
}

// Resolve touches an existing session or creates a replacement when the id is
// missing, malformed or expired. The bool reports whether a new session was created.
func (m *GuestManager) Resolve(ctx context.Context, sessionID string) (Record, bool, error) {
	if strings.TrimSpace(sessionID) != "" {
		record, err := m.Touch(ctx, strings.TrimSpace(sessionID))
		if err == nil {
			return record, false, nil
		}
		if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrInvalidSessionID) {
			return Record{}, false, err
		}
	}
	record, err := m.Create(ctx)
	if err != nil {
		return Record{}, false, err
	}
	return record, true, nil
}

// Delete ends a guest session.
func (m *GuestManager) Delete(ctx context.Context, sessionID string) error {
	if !ValidSessionID(sessionID) {
		return ErrInvalidSessionID
	}
	return m.store.Del(ctx, m.keyer.GuestSessionKey(sessionID))
}

func (m *GuestManager) save(ctx context.Context, record Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding guest session: %w", err)
	}
	return m.store.Set(ctx, m.keyer.GuestSessionKey(record.SessionID), string(payload), m.ttl)
}

func decodeRecord(sessionID, raw string) (Record, error) {
	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return Record{}, fmt.Errorf("decoding guest session: %w", err)
	}
	if record.SessionID != sessionID || record.CreatedAt.IsZero() {
		return Record{}, fmt.Errorf("decoding guest session: malformed record for %s", sessionID)
	}
	return record, nil
}
