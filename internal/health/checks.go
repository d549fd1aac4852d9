package health

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisCheck pings client. The permission cache is optional, so a failed
// ping degrades the service instead of making it unready.
func RedisCheck(client redis.UniversalClient) CheckFunc {
	return func(ctx context.Context) Check {
		if err := client.Ping(ctx).Err(); err != nil {
			return Check{Status: StatusDegraded, Message: err.Error()}
		}
		return Check{Status: StatusHealthy}
	}
}

// BreakerCheck reports the upstream breaker. An open breaker makes the
// service unready.
func BreakerCheck(open func() bool) CheckFunc {
	return func(context.Context) Check {
		if open() {
			return Check{Status: StatusUnhealthy, Message: "upstream circuit breaker is open"}
		}
		return Check{Status: StatusHealthy}
	}
}
