package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"pilgrimage/internal/utils"

	"github.com/redis/go-redis/v9"
)

// Availability caches the seats-left figure shown to clients. It is advisory:
// reservation decisions always go to the ledger. A nil client disables it.
type Availability struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewAvailability(client *redis.Client, ttl time.Duration) *Availability {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Availability{Client: client, TTL: ttl}
}

func availabilityKey(tripID int64) string {
	return fmt.Sprintf("trip:available:%d", tripID)
}

// Get returns the cached value; ok is false on miss or on any redis error.
func (a *Availability) Get(ctx context.Context, tripID int64) (int, bool) {
	if a == nil || a.Client == nil {
		return 0, false
	}
	raw, err := a.Client.Get(ctx, availabilityKey(tripID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			utils.LogEventf(ctx, "cache", "get_failed", "trip_id=%d err=%v", tripID, err)
		}
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (a *Availability) Set(ctx context.Context, tripID int64, seats int) {
	if a == nil || a.Client == nil {
		return
	}
	if err := a.Client.Set(ctx, availabilityKey(tripID), seats, a.TTL).Err(); err != nil {
		utils.LogEventf(ctx, "cache", "set_failed", "trip_id=%d err=%v", tripID, err)
	}
}

// Invalidate drops the cached value after a ledger mutation.
func (a *Availability) Invalidate(ctx context.Context, tripID int64) {
	if a == nil || a.Client == nil {
		return
	}
	if err := a.Client.Del(ctx, availabilityKey(tripID)).Err(); err != nil {
		utils.LogEventf(ctx, "cache", "invalidate_failed", "trip_id=%d err=%v", tripID, err)
	}
}
