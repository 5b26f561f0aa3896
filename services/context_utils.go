package services

import (
	"context"
	"time"
)

func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

// itemContext detaches one unit of batch work from the caller's
// cancellation and bounds it by timeout instead.
func itemContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return persistentContext(ctx), func() {}
	}
	return context.WithTimeout(persistentContext(ctx), timeout)
}
