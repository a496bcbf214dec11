package cache

import (
	"context"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	// Version reads a counter that is 0 until first bumped. Bump increments it.
	Version(ctx context.Context, key string) (int64, error)
	Bump(ctx context.Context, key string) error
}

// Nop is used when Redis is not configured; every lookup misses.
type Nop struct{}

func (Nop) GetJSON(context.Context, string, any) (bool, error)        { return false, nil }
func (Nop) SetJSON(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Del(context.Context, ...string) error                      { return nil }
func (Nop) Version(context.Context, string) (int64, error)            { return 0, nil }
func (Nop) Bump(context.Context, string) error                        { return nil }
