package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// RedisStore keeps values as plain Redis strings.
type RedisStore struct {
	pool *redis.Pool
}

// NewRedisStore builds a pooled store for the Redis server at addr. No
// connection is made until the first command.
func NewRedisStore(addr, password string) *RedisStore {
	pool := &redis.Pool{
		MaxIdle:     3,
		IdleTimeout: 240 * time.Second,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			opts := []redis.DialOption{
				redis.DialConnectTimeout(5 * time.Second),
				redis.DialReadTimeout(10 * time.Second),
				redis.DialWriteTimeout(10 * time.Second),
			}
			if password != "" {
				opts = append(opts, redis.DialPassword(password))
			}
			return redis.DialContext(ctx, "tcp", addr, opts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	return &RedisStore{pool: pool}
}

func (rs *RedisStore) conn(ctx context.Context) (redis.Conn, error) {
	c, err := rs.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	return c, nil
}

func (rs *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	c, err := rs.conn(ctx)
	if err != nil {
		return "", false, err
	}
	defer c.Close()

	v, err := redis.String(redis.DoContext(c, ctx, "GET", key))
	if errors.Is(err, redis.ErrNil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return v, true, nil
}

func (rs *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	c, err := rs.conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	args := redis.Args{key, value}
	if ttl > 0 {
		secs := int64(ttl / time.Second)
		if secs < 1 {
			secs = 1
		}
		args = args.Add("EX", secs)
	}
	if _, err := redis.DoContext(c, ctx, "SET", args...); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (rs *RedisStore) Delete(ctx context.Context, key string) error {
	c, err := rs.conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := redis.DoContext(c, ctx, "DEL", key); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

func (rs *RedisStore) Close() error {
	return rs.pool.Close()
}
