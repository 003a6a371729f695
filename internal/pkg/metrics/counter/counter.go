package counter

import (
	"context"
	"strconv"

	"github.com/eventcastapp/eventcast/internal/pkg/cache"
)

const (
	publishedKey = "publish:counters:published"
	failedKey    = "publish:counters:failed"
	deletedKey   = "publish:counters:deleted"
)

// AddPublished increments the per-platform published counter in Redis
func AddPublished(platform string) error {
	return cache.GetClient().HIncrBy(context.Background(), publishedKey, platform, 1).Err()
}

// AddFailed increments the per-platform failure counter in Redis
func AddFailed(platform string) error {
	return cache.GetClient().HIncrBy(context.Background(), failedKey, platform, 1).Err()
}

// AddDeleted increments the per-platform unpublish counter in Redis
func AddDeleted(platform string) error {
	return cache.GetClient().HIncrBy(context.Background(), deletedKey, platform, 1).Err()
}

// Totals holds the per-platform counters for one outcome class.
type Totals map[string]int64

// Snapshot reads all three counter hashes. Counters are best-effort
// operational numbers; the publication rows stay the source of truth.
func Snapshot() (published, failed, deleted Totals, err error) {
	published, err = readHash(publishedKey)
	if err != nil {
		return nil, nil, nil, err
	}
	failed, err = readHash(failedKey)
	if err != nil {
		return nil, nil, nil, err
	}
	deleted, err = readHash(deletedKey)
	if err != nil {
		return nil, nil, nil, err
	}
	return published, failed, deleted, nil
}

func readHash(key string) (Totals, error) {
	data, err := cache.GetClient().HGetAll(context.Background(), key).Result()
	if err != nil {
		return nil, err
	}
	out := make(Totals, len(data))
	for platform, raw := range data {
		n, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			continue
		}
		out[platform] = n
	}
	return out, nil
}
