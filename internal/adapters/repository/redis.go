package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each document as a JSON string and tracks the ids of a
// collection in a set.
type RedisStore struct {
	client redis.UniversalClient
	cfg    settings
}

var _ Store = (*RedisStore)(nil)

// RedisConfig holds connection parameters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, rc RedisConfig, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreFromClient(client, opts...), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client redis.UniversalClient, opts ...Option) *RedisStore {
	return &RedisStore{client: client, cfg: newSettings(opts)}
}

func (r *RedisStore) docKey(collection, id string) string {
	return r.cfg.keyPrefix + ":doc:" + collection + ":" + id
}

func (r *RedisStore) idsKey(collection string) string {
	return r.cfg.keyPrefix + ":ids:" + collection
}

func (r *RedisStore) Get(ctx context.Context, collection, id string) (Document, error) {
	raw, err := r.client.Get(ctx, r.docKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decodeDocument(raw)
}

func (r *RedisStore) List(ctx context.Context, collection string, q Query) ([]Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ids, err := r.client.SMembers(ctx, r.idsKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.docKey(collection, id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	records := make([]Record, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// Deleted between SMEMBERS and MGET.
			continue
		}
		doc, err := decodeDocument([]byte(s))
		if err != nil {
			return nil, err
		}
		records = append(records, Record{ID: ids[i], Data: doc})
	}
	return q.apply(records), nil
}

func (r *RedisStore) Put(ctx context.Context, collection, id string, fields Document, mode Mode) error {
	if mode == Merge {
		_, err := r.TransactionalUpdate(ctx, collection, id, func(current Document, _ bool) (Document, error) {
			return merge(current, fields), nil
		})
		return err
	}
	raw, err := encodeDocument(fields)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.docKey(collection, id), raw, 0)
		pipe.SAdd(ctx, r.idsKey(collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

// TransactionalUpdate uses WATCH on the document key and retries when
// another client wrote it before EXEC.
func (r *RedisStore) TransactionalUpdate(ctx context.Context, collection, id string, fn UpdateFunc) (Document, error) {
	key := r.docKey(collection, id)
	var written Document

	txf := func(tx *redis.Tx) error {
		var (
			current Document
			exists  bool
		)
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			exists = true
			if current, err = decodeDocument(raw); err != nil {
				return err
			}
		}

		next, err := fn(current, exists)
		if errors.Is(err, ErrSkipWrite) {
			written = current
			return nil
		}
		if err != nil {
			return err
		}
		encoded, err := encodeDocument(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			pipe.SAdd(ctx, r.idsKey(collection), id)
			return nil
		})
		if err != nil {
			return err
		}
		written, err = decodeDocument(encoded)
		return err
	}

	for attempt := 0; attempt < r.cfg.maxRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
		return written, nil
	}
	return nil, fmt.Errorf("update %s/%s: %w", collection, id, ErrConflict)
}

func (r *RedisStore) Delete(ctx context.Context, collection, id string) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.docKey(collection, id))
		pipe.SRem(ctx, r.idsKey(collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
