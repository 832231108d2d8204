package monitor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"i2cresponder/core"
)

// RedisMirror publishes observed register writes and counters to Redis.
// Register values go to prefix+"reg:0xNN", counters to the hash prefix+"stats".
type RedisMirror struct {
	db     *redis.Client
	prefix string
}

// NewRedisMirror connects to the Redis server at addr
func NewRedisMirror(addr, prefix string) *RedisMirror {
	return NewRedisMirrorClient(redis.NewClient(&redis.Options{Addr: addr}), prefix)
}

// NewRedisMirrorClient wraps an existing client
func NewRedisMirrorClient(db *redis.Client, prefix string) *RedisMirror {
	return &RedisMirror{db: db, prefix: prefix}
}

// Ping checks the connection
func (r *RedisMirror) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Publish writes the values carried by rep
func (r *RedisMirror) Publish(ctx context.Context, rep core.Report) error {
	pipe := r.db.TxPipeline()
	queued := 0

	switch rep.Kind {
	case core.ReportTrace:
		for _, ev := range rep.Events {
			if ev.Kind != core.TraceValueSet {
				continue
			}
			pipe.Set(ctx, r.prefix+"reg:"+ev.Register.String(), strconv.Itoa(int(ev.Value)), 0)
			queued++
		}

	case core.ReportStats:
		pipe.HSet(ctx, r.prefix+"stats",
			"reads", rep.Stats.Reads,
			"writes", rep.Stats.Writes,
			"selects", rep.Stats.Selects,
			"overflows", rep.Stats.Overflows,
			"unknown", rep.Stats.UnknownRegisters,
			"bus_faults", rep.Stats.BusFaults,
			"port_errors", rep.PortErrors,
			"dropped", rep.Dropped,
		)
		queued++
	}

	if queued == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis mirror: %w", err)
	}
	return nil
}

// Close closes the client
func (r *RedisMirror) Close() error {
	return r.db.Close()
}
