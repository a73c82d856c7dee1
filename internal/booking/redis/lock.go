package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getClassLockDuration returns the class lock TTL from environment variables
// or the default value.
func (r *Redis) getClassLockDuration() time.Duration {
	// TTL only has to outlive one booking transaction
	defaultDuration := 10 * time.Second

	lockTTLStr := os.Getenv("CLASS_LOCK_TTL_SECONDS")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLSec, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid CLASS_LOCK_TTL_SECONDS value '" + lockTTLStr + "', using default 10 seconds")
		return defaultDuration
	}

	return time.Duration(lockTTLSec) * time.Second
}

// LockClass takes a short-lived lock on one class instance so concurrent
// booking attempts from other processes queue up instead of fighting over
// the same capacity row. The database transaction stays the correctness
// backstop; this lock is contention relief.
func (r *Redis) LockClass(classInstanceID, owner string) (bool, error) {
	key := "class_lock:" + classInstanceID
	ok, err := r.Client.SetNX(context.Background(), key, owner, r.getClassLockDuration()).Result()
	return ok, err
}

// UnlockClass releases the class lock if this owner still holds it. A lock
// that expired and was re-taken by someone else is left alone.
func (r *Redis) UnlockClass(classInstanceID, owner string) error {
	ctx := context.Background()
	key := fmt.Sprintf("class_lock:%s", classInstanceID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already unlocked
	}
	if err != nil {
		return err
	}
	if val == owner {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// AcquireGenerateLock guards the daily generation run so overlapping runs
// across service instances collapse to one.
func (r *Redis) AcquireGenerateLock(owner string) (bool, error) {
	ok, err := r.Client.SetNX(context.Background(), "generate_lock", owner, 10*time.Minute).Result()
	return ok, err
}

func (r *Redis) ReleaseGenerateLock(owner string) error {
	ctx := context.Background()
	val, err := r.Client.Get(ctx, "generate_lock").Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val == owner {
		_, err := r.Client.Del(ctx, "generate_lock").Result()
		return err
	}
	return nil
}
