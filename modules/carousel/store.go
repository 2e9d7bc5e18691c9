package carousel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"bagify-server/modules/common/model"
)

// ErrNotFound - 저장소에 캐러셀 없음 (만료 포함)
var ErrNotFound = errors.New("carousel not found")

// Store - 완료된 캐러셀 보관소
type Store interface {
	Save(ctx context.Context, c *model.GeneratedCarousel) error
	Get(ctx context.Context, id string) (*model.GeneratedCarousel, error)
}

// MemoryStore - 프로세스 메모리 보관 (Redis 미설정 시)
type MemoryStore struct {
	mu        sync.RWMutex
	carousels map[string]*model.GeneratedCarousel
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carousels: make(map[string]*model.GeneratedCarousel)}
}

func (s *MemoryStore) Save(ctx context.Context, c *model.GeneratedCarousel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carousels[c.ID] = cloneCarousel(c)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.GeneratedCarousel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.carousels[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCarousel(c), nil
}

func cloneCarousel(c *model.GeneratedCarousel) *model.GeneratedCarousel {
	out := *c
	out.Frames = make([]model.Image, len(c.Frames))
	for i, f := range c.Frames {
		out.Frames[i] = f.Clone()
	}
	out.FallbackFrames = append([]int(nil), c.FallbackFrames...)
	return &out
}

const redisKeyPrefix = "bagify:carousel:"

// RedisStore - TTL 있는 Redis 보관
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

type storedFrame struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type storedCarousel struct {
	ID             string          `json:"id"`
	Bag            model.BagRecord `json:"bag"`
	Frames         []storedFrame   `json:"frames"`
	Strategy       string          `json:"strategy"`
	FallbackFrames []int           `json:"fallbackFrames,omitempty"`
	GeneratedAt    time.Time       `json:"generatedAt"`
}

func encodeCarousel(c *model.GeneratedCarousel) ([]byte, error) {
	sc := storedCarousel{
		ID:             c.ID,
		Bag:            c.Bag,
		Strategy:       c.Strategy,
		FallbackFrames: c.FallbackFrames,
		GeneratedAt:    c.GeneratedAt,
	}
	for _, f := range c.Frames {
		sc.Frames = append(sc.Frames, storedFrame{MIMEType: f.MIMEType, Data: f.Data})
	}
	return json.Marshal(sc)
}

func decodeCarousel(raw []byte) (*model.GeneratedCarousel, error) {
	var sc storedCarousel
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("failed to decode stored carousel: %w", err)
	}
	c := &model.GeneratedCarousel{
		ID:             sc.ID,
		Bag:            sc.Bag,
		Strategy:       sc.Strategy,
		FallbackFrames: sc.FallbackFrames,
		GeneratedAt:    sc.GeneratedAt,
	}
	for _, f := range sc.Frames {
		c.Frames = append(c.Frames, model.Image{Data: f.Data, MIMEType: f.MIMEType})
	}
	return c, nil
}

func (s *RedisStore) Save(ctx context.Context, c *model.GeneratedCarousel) error {
	payload, err := encodeCarousel(c)
	if err != nil {
		return fmt.Errorf("failed to encode carousel: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+c.ID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store carousel %s: %w", c.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.GeneratedCarousel, error) {
	raw, err := s.rdb.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load carousel %s: %w", id, err)
	}
	return decodeCarousel(raw)
}
