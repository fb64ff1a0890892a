package ads

import (
	"context"
	"time"
)

// Warm loads the active ad list ahead of the first slot request. It waits at
// most timeout and reports whether the cache ended up loaded; a load still
// running after the timeout keeps going in the background.
func (r *Resolver) Warm(ctx context.Context, timeout time.Duration) bool {
	start := time.Now()
	r.logger.Infow("Starting ad cache warmup")

	warmCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r.Resolve(warmCtx, "")

	loaded := r.Loaded()
	if loaded {
		r.logger.Infow("Ad cache warmup completed", "count", len(r.Records()), "duration", time.Since(start))
	} else {
		r.logger.Warnw("Ad cache warmup did not finish", "timeout", timeout)
	}
	return loaded
}
