package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"rental_app_backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// DraftKeyPrefix namespaces autosave snapshots in Redis.
const DraftKeyPrefix = "draft:"

// DraftRepository stores one autosave snapshot per draft.
type DraftRepository interface {
	SaveDraft(ctx context.Context, snap models.DraftSnapshot) error
	GetDraft(ctx context.Context, draftID string) (*models.DraftSnapshot, error)
	DeleteDraft(ctx context.Context, draftID string) error
}

type redisDraftRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDraftRepository stores snapshots as JSON with a sliding ttl.
func NewRedisDraftRepository(client *redis.Client, ttl time.Duration) DraftRepository {
	return &redisDraftRepository{client: client, ttl: ttl}
}

func (r *redisDraftRepository) SaveDraft(ctx context.Context, snap models.DraftSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: encoding draft: %v", ErrDatabaseError, err)
	}
	if err := r.client.Set(ctx, DraftKeyPrefix+snap.DraftID, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: saving draft %s: %v", ErrDatabaseError, snap.DraftID, err)
	}
	return nil
}

func (r *redisDraftRepository) GetDraft(ctx context.Context, draftID string) (*models.DraftSnapshot, error) {
	payload, err := r.client.Get(ctx, DraftKeyPrefix+draftID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: loading draft %s: %v", ErrDatabaseError, draftID, err)
	}
	var snap models.DraftSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: decoding draft %s: %v", ErrDatabaseError, draftID, err)
	}
	return &snap, nil
}

func (r *redisDraftRepository) DeleteDraft(ctx context.Context, draftID string) error {
	if err := r.client.Del(ctx, DraftKeyPrefix+draftID).Err(); err != nil {
		return fmt.Errorf("%w: deleting draft %s: %v", ErrDatabaseError, draftID, err)
	}
	return nil
}

// MemoryDraftRepository keeps snapshots in process.
type MemoryDraftRepository struct {
	mu     sync.RWMutex
	drafts map[string][]byte
}

// NewMemoryDraftRepository creates an empty repository.
func NewMemoryDraftRepository() *MemoryDraftRepository {
	return &MemoryDraftRepository{drafts: make(map[string][]byte)}
}

// SaveDraft stores the JSON encoding, matching what the Redis store would hold.
func (m *MemoryDraftRepository) SaveDraft(_ context.Context, snap models.DraftSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: encoding draft: %v", ErrDatabaseError, err)
	}
	m.mu.Lock()
	m.drafts[snap.DraftID] = payload
	m.mu.Unlock()
	return nil
}

func (m *MemoryDraftRepository) GetDraft(_ context.Context, draftID string) (*models.DraftSnapshot, error) {
	m.mu.RLock()
	payload, ok := m.drafts[draftID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var snap models.DraftSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: decoding draft: %v", ErrDatabaseError, err)
	}
	return &snap, nil
}

func (m *MemoryDraftRepository) DeleteDraft(_ context.Context, draftID string) error {
	m.mu.Lock()
	delete(m.drafts, draftID)
	m.mu.Unlock()
	return nil
}

// RawDraft returns the stored JSON for draftID.
func (m *MemoryDraftRepository) RawDraft(draftID string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.drafts[draftID]
	return b, ok
}
