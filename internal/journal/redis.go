package journal

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps the journal in a capped redis list, newest entry at the head.
type RedisStore struct {
	client   *redis.Client
	key      string
	capacity int
}

// NewRedisStore returns a store whose entries are scoped to program.
func NewRedisStore(client *redis.Client, program string, capacity int) *RedisStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RedisStore{
		client:   client,
		key:      fmt.Sprintf("keeper:%s:actions", program),
		capacity: capacity,
	}
}

// Key is the redis list the entries are stored under.
func (r *RedisStore) Key() string {
	return r.key
}

func (r *RedisStore) Record(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "failed to marshal journal entry")
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, int64(r.capacity-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return eris.Wrap(err, "failed to record journal entry")
	}
	return nil
}

func (r *RedisStore) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return []Entry{}, nil
	}
	raw, err := r.client.LRange(ctx, r.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, eris.Wrap(err, "failed to read journal")
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, eris.Wrap(err, "failed to unmarshal journal entry")
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Close closes the underlying redis client.
func (r *RedisStore) Close() error {
	return eris.Wrap(r.client.Close(), "failed to close redis client")
}
