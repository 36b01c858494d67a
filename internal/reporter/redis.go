package reporter

import (
	"context"

	"github.com/cutekitek/rankode-judge/internal/mappers"
	"github.com/cutekitek/rankode-judge/internal/repository/models"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const DefaultStream = "judge:results"

// RedisReporter appends results to a redis stream. Stream entries keep
// insertion order, which is the case order.
type RedisReporter struct {
	client *redis.Client
	stream string
}

func NewRedisReporter(client *redis.Client, stream string) *RedisReporter {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisReporter{client: client, stream: stream}
}

func (r *RedisReporter) Report(ctx context.Context, submissionId string, res models.CaseResult) error {
	msg := mappers.CaseResultToMessage(submissionId, res)
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"id":     msg.Id,
			"case":   msg.Case,
			"result": msg.Result,
			"time":   msg.Time,
			"memory": msg.Memory,
		},
	}).Err()
	if err != nil {
		return errors.Wrapf(err, "failed to add result to stream %s", r.stream)
	}
	return nil
}

func (r *RedisReporter) Close() error {
	return r.client.Close()
}
