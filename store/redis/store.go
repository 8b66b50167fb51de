// Package redis provides Redis storage for gousers.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/aloks98/gousers/store"
)

// DefaultKeyPrefix is prepended to every key the store writes.
const DefaultKeyPrefix = "gousers:"

// Key suffixes for Redis storage.
const (
	suffixUser  = "user:"    // string, JSON-encoded user
	suffixSeq   = "user_seq" // INCR counter, never decremented
	suffixOrder = "users"    // sorted set of ids scored by id
)

// maxUpdateRetries bounds optimistic-lock retries in Update.
const maxUpdateRetries = 5

// Store implements store.Store using Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// Config holds Redis store configuration.
type Config struct {
	// Client is an existing Redis client.
	// If provided, other options are ignored.
	Client redis.UniversalClient

	// Addr is the Redis server address (host:port).
	Addr string

	// Password is the Redis password.
	Password string

	// DB is the Redis database number.
	DB int

	// PoolSize is the maximum number of connections.
	PoolSize int

	// KeyPrefix namespaces all keys. Defaults to "gousers:".
	KeyPrefix string
}

// New creates a new Redis store.
func New(cfg *Config) (*Store, error) {
	var client redis.UniversalClient

	if cfg.Client != nil {
		client = cfg.Client
	} else {
		opts := &redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
		if cfg.PoolSize > 0 {
			opts.PoolSize = cfg.PoolSize
		}
		client = redis.NewClient(opts)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &Store{client: client, prefix: prefix}, nil
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.UniversalClient {
	return s.client
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Migrate is a no-op for Redis as it doesn't require schema migration.
func (s *Store) Migrate(ctx context.Context) error {
	return nil
}

func (s *Store) userKey(id int64) string {
	return s.prefix + suffixUser + strconv.FormatInt(id, 10)
}

func (s *Store) seqKey() string {
	return s.prefix + suffixSeq
}

func (s *Store) orderKey() string {
	return s.prefix + suffixOrder
}

// Create takes the next id from the counter and stores the user.
func (s *Store) Create(ctx context.Context, name, email string) (*store.User, error) {
	id, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return nil, err
	}

	u := &store.User{ID: id, Name: name, Email: email}
	data, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.userKey(id), data, 0)
		pipe.ZAdd(ctx, s.orderKey(), redis.Z{Score: float64(id), Member: strconv.FormatInt(id, 10)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return u, nil
}

// Get retrieves a user by id.
func (s *Store) Get(ctx context.Context, id int64) (*store.User, error) {
	data, err := s.client.Get(ctx, s.userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	var u store.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Update replaces an existing user. The key is watched so a concurrent
// Delete cannot be overwritten by a stale Update.
func (s *Store) Update(ctx context.Context, id int64, name, email string) (*store.User, error) {
	key := s.userKey(id)
	u := &store.User{ID: id, Name: name, Email: email}
	data, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}

	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrUserNotFound
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err = s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return u, nil
	}
	return nil, err
}

// Delete removes a user and its position in the insertion order.
func (s *Store) Delete(ctx context.Context, id int64) error {
	var del *redis.IntCmd

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.userKey(id))
		pipe.ZRem(ctx, s.orderKey(), strconv.FormatInt(id, 10))
		return nil
	})
	if err != nil {
		return err
	}

	if del.Val() == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

// List returns all users ordered by id.
func (s *Store) List(ctx context.Context) ([]*store.User, error) {
	members, err := s.client.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	users := make([]*store.User, 0, len(members))
	if len(members) == 0 {
		return users, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = s.prefix + suffixUser + m
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Deleted between ZRange and MGet.
			continue
		}
		var u store.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, nil
}

var _ store.Store = (*Store)(nil)
