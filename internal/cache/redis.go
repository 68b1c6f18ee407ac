package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Cache on a shared Redis instance so replicas see the same
// cached upstream data. Keys carry no Redis expiry: freshness is judged
// client-side against the stored timestamp, which keeps stale values
// retrievable for the fallback path.
type Redis struct {
	rdb *redis.Client
	now func() time.Time
}

type redisEntry struct {
	Value    json.RawMessage `json:"value"`
	StoredAt time.Time       `json:"stored_at"`
	TTLMs    int64           `json:"ttl_ms"`
}

// NewRedis connects and pings; a dead Redis at boot is a hard error.
func NewRedis(redisURL, password string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Redis{rdb: rdb, now: time.Now}, nil
}

func (r *Redis) Close() error { return r.rdb.Close() }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	e, ok := r.load(ctx, key)
	if !ok {
		return nil, false
	}
	if r.now().Sub(e.StoredAt) >= time.Duration(e.TTLMs)*time.Millisecond {
		return nil, false
	}
	return e.Value, true
}

func (r *Redis) GetStale(ctx context.Context, key string) ([]byte, bool) {
	e, ok := r.load(ctx, key)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	e := redisEntry{Value: value, StoredAt: r.now(), TTLMs: ttl.Milliseconds()}
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	r.rdb.Set(ctx, "cache:"+key, b, 0) // 0 = no expiry, stale reads stay possible
}

func (r *Redis) load(ctx context.Context, key string) (redisEntry, bool) {
	b, err := r.rdb.Get(ctx, "cache:"+key).Bytes()
	if err != nil {
		return redisEntry{}, false
	}
	var e redisEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return redisEntry{}, false
	}
	return e, true
}
