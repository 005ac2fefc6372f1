package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "builder:session:" // Session data: builder:session:{project_id}
	seqKeyPrefix     = "builder:seq:"     // Generation sequence: builder:seq:{project_id}
	sessionTTL       = 7 * 24 * time.Hour
)

// Session is the transient per-project workflow state kept outside the
// record store: the derived stage and when the builder last touched it.
type Session struct {
	ProjectID string    `json:"project_id"`
	Stage     Stage     `json:"stage"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStore tracks builder sessions and per-project generation
// sequence numbers. Sequence numbers implement stale-response discarding:
// every generation start takes the next number, and only the holder of
// the current number may commit its result.
type SessionStore interface {
	NextSeq(ctx context.Context, projectID string) (int64, error)
	CurrentSeq(ctx context.Context, projectID string) (int64, error)
	Touch(ctx context.Context, projectID string, stage Stage) error
	Get(ctx context.Context, projectID string) (*Session, error)
	Delete(ctx context.Context, projectID string) error
	ListProjectIDs(ctx context.Context) ([]string, error)
}

// RedisSessionStore keeps builder sessions in Redis with a 7-day TTL.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) NextSeq(ctx context.Context, projectID string) (int64, error) {
	key := seqKeyPrefix + projectID

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("next generation seq: %w", err)
	}
	return incr.Val(), nil
}

func (s *RedisSessionStore) CurrentSeq(ctx context.Context, projectID string) (int64, error) {
	val, err := s.client.Get(ctx, seqKeyPrefix+projectID).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("current generation seq: %w", err)
	}
	return val, nil
}

func (s *RedisSessionStore) Touch(ctx context.Context, projectID string, stage Stage) error {
	sess := Session{
		ProjectID: projectID,
		Stage:     stage,
		UpdatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+projectID, data, sessionTTL).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, projectID string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+projectID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, projectID string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+projectID, seqKeyPrefix+projectID).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) ListProjectIDs(ctx context.Context) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan sessions: %w", err)
		}
		for _, key := range keys {
			out = append(out, key[len(sessionKeyPrefix):])
		}
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}

// MemorySessionStore is the fallback used when Redis is not configured.
// Sessions do not survive a restart, which is acceptable for a single
// development instance.
type MemorySessionStore struct {
	mu       sync.Mutex
	seqs     map[string]int64
	sessions map[string]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		seqs:     make(map[string]int64),
		sessions: make(map[string]Session),
	}
}

func (s *MemorySessionStore) NextSeq(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[projectID]++
	return s.seqs[projectID], nil
}

func (s *MemorySessionStore) CurrentSeq(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqs[projectID], nil
}

func (s *MemorySessionStore) Touch(_ context.Context, projectID string, stage Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[projectID] = Session{
		ProjectID: projectID,
		Stage:     stage,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, projectID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[projectID]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, projectID)
	delete(s.seqs, projectID)
	return nil
}

func (s *MemorySessionStore) ListProjectIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	return out, nil
}
