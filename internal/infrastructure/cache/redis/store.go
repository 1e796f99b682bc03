package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/megachat/sales-assistant/internal/core/domain"
)

var tracer = otel.Tracer("redis.cache")

type Options struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Store implements ports.CacheStore on a single Redis keyspace.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// NewClient does not connect; the first command dials lazily.
func NewClient(options Options) *redis.Client {
	dialTimeout := options.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	readTimeout := options.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = time.Second
	}
	writeTimeout := options.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = time.Second
	}
	return redis.NewClient(&redis.Options{
		Addr:         options.Addr,
		Password:     options.Password,
		DB:           options.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})
}

func NewStore(client redis.UniversalClient, keyPrefix string) *Store {
	return &Store{client: client, prefix: keyPrefix}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := tracer.Start(ctx, "cache.Get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, false, nil
	}
	if err != nil {
		recordError(span, err)
		return nil, false, wrapRedisError("redis get", err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "cache.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_ms", ttl.Milliseconds()),
		))
	defer span.End()

	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		recordError(span, err)
		return wrapRedisError("redis set", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "cache.Delete",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		recordError(span, err)
		return wrapRedisError("redis delete", err)
	}
	return nil
}

func (s *Store) Name() string {
	return "redis"
}

func (s *Store) Ping(ctx context.Context) error {
	result, err := s.client.Ping(ctx).Result()
	if err != nil {
		return wrapRedisError("redis ping", err)
	}
	if result != "PONG" {
		return fmt.Errorf("unexpected ping response: %s", result)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// wrapRedisError marks everything except caller cancellation as temporary.
func wrapRedisError(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return domain.WrapError(domain.ErrTemporary, operation, err)
}
