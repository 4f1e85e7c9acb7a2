package checker

import (
	"context"
	"fmt"

	"github.com/saaga0h/canopy/e2e/internal/scenario"
	"github.com/saaga0h/canopy/pkg/redis"
)

// CheckRedisExpectation validates a hash field written by the collector
func CheckRedisExpectation(ctx context.Context, client redis.Client, exp scenario.Expectation) (bool, string, interface{}) {
	fields, err := client.HGetAll(ctx, exp.RedisKey)
	if err != nil {
		return false, fmt.Sprintf("redis error: %v", err), nil
	}

	value, ok := fields[exp.RedisField]
	if !ok {
		return false, fmt.Sprintf("key %q field %q not found in Redis", exp.RedisKey, exp.RedisField), nil
	}

	if ok, reason := Match(value, exp.Expected); !ok {
		return false, reason, value
	}
	return true, "", value
}
