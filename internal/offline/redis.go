package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"spartan-crm/internal/domain"
	"spartan-crm/pkg/config"
)

const (
	defaultPrefix = "offline:"
	// optimistic transactions that lose a WATCH race are re-run this many times
	maxTxAttempts = 5
)

// NewRedisClient builds a go-redis client from config
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisStore keeps one JSON document per lead plus id sets per sync status
// and per name key. Index sets are rewritten in the same MULTI/EXEC as the
// document, under WATCH on the document key.
type RedisStore struct {
	c      *redis.Client
	prefix string
}

// NewRedisStore uses prefix for every key. An empty prefix means "offline:".
func NewRedisStore(c *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{c: c, prefix: prefix}
}

// Ping checks the connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.c.Ping(ctx).Err()
}

func (s *RedisStore) leadKey(id string) string { return s.prefix + "lead:" + id }

func (s *RedisStore) allKey() string { return s.prefix + "leads" }

func (s *RedisStore) statusKey(st domain.SyncStatus) string { return s.prefix + "status:" + string(st) }

func (s *RedisStore) nameKey(name string) string { return s.prefix + "name:" + NameKey(name) }

// getter is satisfied by both *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Lead, error) {
	return s.read(ctx, s.c, id)
}

func (s *RedisStore) Put(ctx context.Context, lead domain.Lead) error {
	if err := validate(lead); err != nil {
		return err
	}
	return s.transact(ctx, lead.ID, func(tx *redis.Tx) error {
		prev, err := s.read(ctx, tx, lead.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return s.write(ctx, tx, prev, &lead)
	})
}

func (s *RedisStore) Update(ctx context.Context, id string, patch domain.LeadPatch) (*domain.Lead, error) {
	var updated domain.Lead
	err := s.transact(ctx, id, func(tx *redis.Tx) error {
		prev, err := s.read(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = *prev
		patch.Apply(&updated)
		if err := validate(updated); err != nil {
			return err
		}
		return s.write(ctx, tx, prev, &updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.transact(ctx, id, func(tx *redis.Tx) error {
		prev, err := s.read(ctx, tx, id)
		if err != nil {
			return err
		}
		return s.write(ctx, tx, prev, nil)
	})
}

func (s *RedisStore) List(ctx context.Context) ([]domain.Lead, error) {
	ids, err := s.c.SMembers(ctx, s.allKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("offline: list ids: %w", err)
	}
	return s.readMany(ctx, ids)
}

func (s *RedisStore) ListBySyncStatus(ctx context.Context, statuses ...domain.SyncStatus) ([]domain.Lead, error) {
	if len(statuses) == 0 {
		return []domain.Lead{}, nil
	}
	keys := make([]string, 0, len(statuses))
	for _, st := range statuses {
		keys = append(keys, s.statusKey(st))
	}
	ids, err := s.c.SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("offline: list by status: %w", err)
	}
	return s.readMany(ctx, ids)
}

func (s *RedisStore) FindByName(ctx context.Context, name string) ([]domain.Lead, error) {
	ids, err := s.c.SMembers(ctx, s.nameKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("offline: find by name: %w", err)
	}
	return s.readMany(ctx, ids)
}

// transact runs fn under WATCH on the lead key, re-running it when another
// writer touched the key first
func (s *RedisStore) transact(ctx context.Context, id string, fn func(*redis.Tx) error) error {
	key := s.leadKey(id)
	for i := 0; i < maxTxAttempts; i++ {
		err := s.c.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("offline: lead %s: too much write contention", id)
}

// write replaces prev with next in one MULTI/EXEC. A nil next deletes.
func (s *RedisStore) write(ctx context.Context, tx *redis.Tx, prev, next *domain.Lead) error {
	var payload []byte
	if next != nil {
		var err error
		if payload, err = json.Marshal(next); err != nil {
			return fmt.Errorf("offline: encode lead %s: %w", next.ID, err)
		}
	}

	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prev != nil {
			pipe.SRem(ctx, s.statusKey(prev.SyncStatus), prev.ID)
			pipe.SRem(ctx, s.nameKey(prev.Name), prev.ID)
		}
		if next == nil {
			pipe.Del(ctx, s.leadKey(prev.ID))
			pipe.SRem(ctx, s.allKey(), prev.ID)
			return nil
		}
		pipe.Set(ctx, s.leadKey(next.ID), payload, 0)
		pipe.SAdd(ctx, s.allKey(), next.ID)
		pipe.SAdd(ctx, s.statusKey(next.SyncStatus), next.ID)
		pipe.SAdd(ctx, s.nameKey(next.Name), next.ID)
		return nil
	})
	return err
}

func (s *RedisStore) read(ctx context.Context, c getter, id string) (*domain.Lead, error) {
	raw, err := c.Get(ctx, s.leadKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("offline: get lead %s: %w", id, err)
	}
	var l domain.Lead
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("offline: decode lead %s: %w", id, err)
	}
	return &l, nil
}

func (s *RedisStore) readMany(ctx context.Context, ids []string) ([]domain.Lead, error) {
	out := make([]domain.Lead, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.leadKey(id))
	}
	vals, err := s.c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("offline: load leads: %w", err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// index entry outlived its document; skip it
			continue
		}
		var l domain.Lead
		if err := json.Unmarshal([]byte(str), &l); err != nil {
			return nil, fmt.Errorf("offline: decode lead %s: %w", ids[i], err)
		}
		out = append(out, l)
	}
	sortLeads(out)
	return out, nil
}
