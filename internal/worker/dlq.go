package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// deadPrintsKey is the Redis list of documents that ran out of print attempts.
const deadPrintsKey = "dlq:" + QueuePrint

// DeadPrint is a spooled document the worker pool gave up on. It keeps the
// original job so it can be requeued once the printer is fixed.
type DeadPrint struct {
	Job      Job       `json:"job"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

func deadLetter(ctx context.Context, rdb *redis.Client, job Job, reason string) error {
	data, err := json.Marshal(DeadPrint{Job: job, Reason: reason, FailedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := rdb.LPush(ctx, deadPrintsKey, data).Err(); err != nil {
		return err
	}
	log.Warn().
		Str("type", job.Type).
		Int("attempts", job.Attempts).
		Str("reason", reason).
		Msg("print job dead-lettered")
	return nil
}

// DeadPrintCount is reported by the health check.
func DeadPrintCount(ctx context.Context, rdb *redis.Client) (int64, error) {
	return rdb.LLen(ctx, deadPrintsKey).Result()
}

// DeadPrints lists up to limit dead letters, oldest first.
func DeadPrints(ctx context.Context, rdb *redis.Client, limit int64) ([]DeadPrint, error) {
	raw, err := rdb.LRange(ctx, deadPrintsKey, -limit, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DeadPrint, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var d DeadPrint
		if err := json.Unmarshal([]byte(raw[i]), &d); err != nil {
			return nil, fmt.Errorf("dead print %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// RequeueDeadPrints moves every dead letter back to the print queue with a
// fresh attempt count. Entries that cannot be decoded stay where they are.
func RequeueDeadPrints(ctx context.Context, rdb *redis.Client) (int, error) {
	n := 0
	for {
		raw, err := rdb.RPop(ctx, deadPrintsKey).Result()
		if err == redis.Nil {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		var d DeadPrint
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			// Park it at the head so the loop does not pop it again.
			if perr := rdb.LPush(ctx, deadPrintsKey, raw).Err(); perr != nil {
				return n, perr
			}
			return n, fmt.Errorf("undecodable dead print: %w", err)
		}
		d.Job.Attempts = 0
		if err := push(ctx, rdb, d.Job); err != nil {
			return n, err
		}
		n++
	}
}
