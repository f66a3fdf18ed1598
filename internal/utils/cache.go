package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"errors"        // Error matching
	"strconv"       // Key formatting
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// Cache is a JSON read-through cache on Redis. A nil Cache, or one without a client,
// behaves as an always-missing cache so handlers work without Redis.
type Cache struct {
	rdb redis.UniversalClient // Redis client
	ttl time.Duration         // Lifetime of every entry
}

// NewCache wraps rdb with a fixed TTL
func NewCache(rdb redis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.rdb != nil
}

// Get retrieves a value from Redis and unmarshals it into dest
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	val, err := c.rdb.Get(ctx, key).Result() // Get value from Redis
	if errors.Is(err, redis.Nil) {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// Set stores value in Redis with the cache TTL
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	if !c.enabled() {
		return nil
	}
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return c.rdb.Set(ctx, key, b, c.ttl).Err() // Set value in Redis with TTL
}

// Delete removes keys from Redis
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.enabled() || len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// DeletePrefix removes every key starting with prefix
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) error {
	if !c.enabled() {
		return nil
	}
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return c.Delete(ctx, keys...)
}

// Cache keys
func WalletKey(companyID uint) string {
	return "wallet:company:" + strconv.FormatUint(uint64(companyID), 10)
}

func TxHistoryPrefix(companyID uint) string {
	return "txhistory:company:" + strconv.FormatUint(uint64(companyID), 10) + ":"
}

func StoreProductKey(productID uint) string {
	return "store:product:" + strconv.FormatUint(uint64(productID), 10)
}

func StoreCompanyKey(companyID uint) string {
	return "store:company:" + strconv.FormatUint(uint64(companyID), 10)
}

// AdminPrefix namespaces cached admin listings
const AdminPrefix = "admin:"
