package pagination

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/feedcache/pkg/feed"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// maxSharedAttempts bounds how often a lookup is repeated after joining a
// call that another caller's cancellation aborted.
const maxSharedAttempts = 3

// resolveJob asks for the auxiliary resource of one item.
type resolveJob struct {
	ItemID int
	AuxID  int
}

// Resolver resolves auxiliary resources for batches of items with a bounded
// worker pool. Concurrent requests for the same resource id share one
// gateway call.
type Resolver struct {
	gateway        feed.Gateway
	maxConcurrency int
	timeout        time.Duration
	group          singleflight.Group
	logger         zerolog.Logger
}

// NewResolver creates a resolver running at most maxConcurrency lookups per
// batch, each bounded by timeout.
func NewResolver(gateway feed.Gateway, maxConcurrency int, timeout time.Duration, logger zerolog.Logger) *Resolver {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}

	return &Resolver{
		gateway:        gateway,
		maxConcurrency: maxConcurrency,
		timeout:        timeout,
		logger:         logger,
	}
}

// ResolveBatch resolves every job and calls merge for each success as soon as
// it completes. merge may be called concurrently. Failures are logged per item
// and never stop the remaining jobs. It returns once every job has finished.
func (r *Resolver) ResolveBatch(ctx context.Context, batchID string, jobs []resolveJob, merge func(itemID int, url string)) (resolved, failed int) {
	if len(jobs) == 0 {
		return 0, 0
	}
	start := time.Now()

	queue := make(chan resolveJob, len(jobs))
	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	workers := r.maxConcurrency
	if workers > len(jobs) {
		workers = len(jobs)
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range queue {
				ok := r.resolveOne(ctx, batchID, workerID, job, merge)

				mu.Lock()
				if ok {
					resolved++
				} else {
					failed++
				}
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	r.logger.Debug().
		Str("batch_id", batchID).
		Int("resolved", resolved).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Resolution batch complete")

	return resolved, failed
}

func (r *Resolver) resolveOne(ctx context.Context, batchID string, workerID int, job resolveJob, merge func(int, string)) bool {
	if ctx.Err() != nil {
		auxResolutionsTotal.WithLabelValues("cancelled").Inc()
		return false
	}

	v, err := r.lookup(ctx, job.AuxID)
	if err != nil {
		result := "failed"
		switch {
		case ctx.Err() != nil:
			result = "cancelled"
		case feed.IsNotFound(err):
			result = "not_found"
		}
		auxResolutionsTotal.WithLabelValues(result).Inc()

		r.logger.Warn().
			Err(err).
			Str("batch_id", batchID).
			Int("worker_id", workerID).
			Int("item_id", job.ItemID).
			Int("aux_id", job.AuxID).
			Msg("Auxiliary resource resolution failed")
		return false
	}

	auxResolutionsTotal.WithLabelValues("resolved").Inc()
	merge(job.ItemID, v.ResolvedURL)
	return true
}

// lookup resolves auxID, sharing the gateway call with concurrent lookups of
// the same id. A shared call runs on the context of the caller that started
// it, so when that context was cancelled while ours is still live the lookup
// is repeated on ours.
func (r *Resolver) lookup(ctx context.Context, auxID int) (feed.AuxResource, error) {
	key := strconv.Itoa(auxID)
	for attempt := 1; ; attempt++ {
		v, err, shared := r.group.Do(key, func() (interface{}, error) {
			lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			return r.gateway.ResolveAuxiliaryResource(lookupCtx, auxID)
		})
		if err == nil {
			return v.(feed.AuxResource), nil
		}
		if attempt >= maxSharedAttempts || !shared || ctx.Err() != nil || !errors.Is(err, context.Canceled) {
			return feed.AuxResource{}, err
		}

		r.logger.Debug().
			Int("aux_id", auxID).
			Int("attempt", attempt).
			Msg("Shared lookup was cancelled by another batch, retrying")
	}
}
