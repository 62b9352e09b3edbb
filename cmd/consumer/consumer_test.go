package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ride-assist/internal/models"
)

// fakeUpdater implements RedisUpdater for tests
type fakeUpdater struct {
	failH    int // number of times to fail HSet before succeeding
	failZ    int // number of times to fail ZAdd before succeeding
	hCalls   int
	zCalls   int
	lastHash map[string]interface{}
	lastZKey string
}

func (f *fakeUpdater) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	f.hCalls++
	if f.hCalls <= f.failH {
		return errors.New("hset fail")
	}
	f.lastHash = values
	return nil
}

func (f *fakeUpdater) ZAdd(ctx context.Context, key string, member string, score float64) error {
	f.zCalls++
	if f.zCalls <= f.failZ {
		return errors.New("zadd fail")
	}
	f.lastZKey = key
	return nil
}

func ratedEvent() *models.RideEvent {
	return &models.RideEvent{
		Type:           models.EventRated,
		RideID:         7,
		DriverID:       3,
		DriverName:     "Carlos Reyes",
		Fare:           62,
		Rating:         5,
		DriverEarnings: 62,
		DriverRides:    1,
		DriverRating:   5,
	}
}

func TestUpdateRedisWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeUpdater{failH: 1, failZ: 1}
	ctx := context.Background()
	start := time.Now()
	if err := updateRedisWithRetry(ctx, f, ratedEvent(), 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.hCalls < 2 || f.zCalls < 2 {
		t.Fatalf("expected retries, got h=%d z=%d", f.hCalls, f.zCalls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
	if f.lastHash["earnings"] != float64(62) {
		t.Fatalf("unexpected earnings in stats hash: %v", f.lastHash["earnings"])
	}
	if f.lastZKey != "drivers:by_earnings" {
		t.Fatalf("unexpected leaderboard key: %s", f.lastZKey)
	}
}

func TestUpdateRedisWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeUpdater{failH: 5}
	ctx := context.Background()
	if err := updateRedisWithRetry(ctx, f, ratedEvent(), 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}
