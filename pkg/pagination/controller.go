package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/feedcache/pkg/cache"
	"github.com/Sternrassler/feedcache/pkg/feed"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Defaults for Config.
const (
	DefaultMaxConcurrency = 10
	DefaultResolveTimeout = 15 * time.Second
)

var (
	// ErrLoadInProgress is returned when a load is requested while another is in flight.
	ErrLoadInProgress = errors.New("load already in progress")

	// ErrSuperseded is returned when a load finished after a newer generation
	// started; its result was discarded.
	ErrSuperseded = errors.New("load superseded by a newer filter")

	// ErrClosed is returned by a closed controller.
	ErrClosed = errors.New("controller closed")
)

// Config holds controller configuration.
type Config struct {
	// PageSize is the number of items requested per page
	PageSize int

	// MaxConcurrency is the maximum number of parallel auxiliary lookups per batch
	MaxConcurrency int

	// ResolveTimeout bounds a single auxiliary lookup
	ResolveTimeout time.Duration

	Logger *zerolog.Logger
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:       feed.DefaultPageSize,
		MaxConcurrency: DefaultMaxConcurrency,
		ResolveTimeout: DefaultResolveTimeout,
	}
}

// State is a consistent snapshot of the controller's pagination state.
type State struct {
	// Items in page order
	Items []feed.Item

	// AuxURLs maps item id to its resolved auxiliary resource URL.
	// An absent id is unresolved or failed.
	AuxURLs map[int]string

	Filter      feed.Filter
	CurrentPage int
	CanLoadMore bool
	IsLoading   bool
	LastError   error

	// Generation increases every time the item list is replaced wholesale
	Generation uint64
}

// Controller owns the pagination state of one feed view. All state mutations
// happen under its lock; observers read copies through Snapshot.
type Controller struct {
	gateway  feed.Gateway
	cache    *cache.Manager
	resolver *Resolver
	config   Config
	logger   zerolog.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	genCtx     context.Context
	genCancel  context.CancelFunc
	closed     bool

	batches sync.WaitGroup
	updates chan struct{}
}

// NewController creates a controller reading through cacheManager and
// fetching from gateway.
func NewController(gateway feed.Gateway, cacheManager *cache.Manager, cfg Config) (*Controller, error) {
	if gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if cacheManager == nil {
		return nil, fmt.Errorf("cache manager is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = feed.DefaultPageSize
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = DefaultResolveTimeout
	}

	logger := log.With().Str("component", "pagination").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	genCtx, genCancel := context.WithCancel(context.Background())

	return &Controller{
		gateway:  gateway,
		cache:    cacheManager,
		resolver: NewResolver(gateway, cfg.MaxConcurrency, cfg.ResolveTimeout, logger),
		config:   cfg,
		logger:   logger,
		state: State{
			AuxURLs:     make(map[int]string),
			CurrentPage: 1,
		},
		genCtx:    genCtx,
		genCancel: genCancel,
		updates:   make(chan struct{}, 1),
	}, nil
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.Items = append([]feed.Item(nil), c.state.Items...)
	s.AuxURLs = make(map[int]string, len(c.state.AuxURLs))
	for id, url := range c.state.AuxURLs {
		s.AuxURLs[id] = url
	}
	return s
}

// Updates returns a channel signalled after every state change. Signals are
// coalesced; read Snapshot after receiving one.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

// LoadFirstPage loads page 1 under filter and replaces the item list. Unless
// forceRefresh is set, a fresh cached page is used without a network call.
// On failure LastError is set and the current items stay visible.
func (c *Controller) LoadFirstPage(ctx context.Context, filter feed.Filter, forceRefresh bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state.IsLoading {
		c.mu.Unlock()
		return ErrLoadInProgress
	}
	gen, genCtx := c.beginGenerationLocked()
	c.state.IsLoading = true
	c.mu.Unlock()
	c.notify()

	kind := "first"
	if forceRefresh {
		kind = "refresh"
	}
	return c.loadFirst(ctx, gen, genCtx, filter, forceRefresh, kind)
}

// SwitchFilter clears the item list and loads page 1 under filter. It
// supersedes a load in flight: that load's result is discarded when it
// arrives.
func (c *Controller) SwitchFilter(ctx context.Context, filter feed.Filter) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	superseding := c.state.IsLoading
	gen, genCtx := c.beginGenerationLocked()
	c.state.Items = nil
	c.state.Filter = filter
	c.state.CurrentPage = 1
	c.state.CanLoadMore = false
	c.state.LastError = nil
	c.state.IsLoading = true
	c.mu.Unlock()
	c.notify()

	if superseding {
		c.logger.Info().
			Str("filter", filter.String()).
			Uint64("generation", gen).
			Msg("Filter switch supersedes in-flight load")
	}

	return c.loadFirst(ctx, gen, genCtx, filter, false, "switch")
}

// LoadMore fetches the next page under the current filter and appends it.
// It does nothing when the end of the feed was reached. On failure the page
// number is rolled back so a retry requests the same page.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state.IsLoading {
		c.mu.Unlock()
		return ErrLoadInProgress
	}
	if !c.state.CanLoadMore {
		c.mu.Unlock()
		return nil
	}
	prevPage := c.state.CurrentPage
	c.state.CurrentPage++
	page := c.state.CurrentPage
	c.state.IsLoading = true
	gen, genCtx, filter := c.generation, c.genCtx, c.state.Filter
	c.mu.Unlock()
	c.notify()

	start := time.Now()
	fetchCtx, done := withGeneration(ctx, genCtx)
	items, err := c.gateway.FetchPage(fetchCtx, filter, page, c.config.PageSize)
	done()
	pageLoadDuration.WithLabelValues("more").Observe(time.Since(start).Seconds())

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.discard("more", gen, filter)
		return ErrSuperseded
	}

	switch {
	case err != nil:
		c.state.CurrentPage = prevPage
		c.state.LastError = err
		pageLoadsTotal.WithLabelValues("more", "gateway", "error").Inc()
		c.logger.Warn().
			Err(err).
			Str("filter", filter.String()).
			Int("page", page).
			Msg("Load more failed, page rolled back")
	case len(items) == 0:
		c.state.CanLoadMore = false
		pageLoadsTotal.WithLabelValues("more", "gateway", "empty").Inc()
		c.logger.Info().
			Str("filter", filter.String()).
			Int("page", page).
			Msg("Reached end of feed")
	default:
		c.state.Items = append(c.state.Items, items...)
		c.state.LastError = nil
		c.launchBatchLocked(gen, genCtx, c.pendingLocked(items))
		pageLoadsTotal.WithLabelValues("more", "gateway", "success").Inc()
		c.logger.Info().
			Str("filter", filter.String()).
			Int("page", page).
			Int("items", len(items)).
			Dur("duration", time.Since(start)).
			Msg("Loaded page")
	}
	c.state.IsLoading = false
	c.mu.Unlock()
	c.notify()

	return err
}

// Wait blocks until every resolution batch started so far has finished.
func (c *Controller) Wait() {
	c.batches.Wait()
}

// Close cancels outstanding loads and resolution batches and waits for them.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.genCancel()
	c.mu.Unlock()

	c.batches.Wait()
	return nil
}

// loadFirst runs a page-1 load for generation gen and commits its result
// unless a newer generation has started meanwhile.
func (c *Controller) loadFirst(ctx context.Context, gen uint64, genCtx context.Context, filter feed.Filter, forceRefresh bool, kind string) error {
	start := time.Now()
	items, source, err := c.firstPage(ctx, genCtx, filter, forceRefresh)
	pageLoadDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.discard(kind, gen, filter)
		return ErrSuperseded
	}

	if err != nil {
		c.state.LastError = err
		pageLoadsTotal.WithLabelValues(kind, source, "error").Inc()
		c.logger.Warn().
			Err(err).
			Str("filter", filter.String()).
			Int("items_kept", len(c.state.Items)).
			Msg("First page load failed")
	} else {
		c.state.Items = items
		c.state.Filter = filter
		c.state.CurrentPage = 1
		c.state.CanLoadMore = len(items) > 0
		c.state.LastError = nil
		pageLoadsTotal.WithLabelValues(kind, source, "success").Inc()
		c.logger.Info().
			Str("filter", filter.String()).
			Str("source", source).
			Int("items", len(items)).
			Uint64("generation", gen).
			Dur("duration", time.Since(start)).
			Msg("Loaded first page")
	}

	c.launchBatchLocked(gen, genCtx, c.pendingLocked(c.state.Items))
	c.state.IsLoading = false
	c.mu.Unlock()
	c.notify()

	return err
}

// firstPage returns page 1 from the response cache, or from the gateway on a
// miss or forced refresh, storing what the gateway returned.
func (c *Controller) firstPage(ctx, genCtx context.Context, filter feed.Filter, forceRefresh bool) ([]feed.Item, string, error) {
	key := pageKey(filter, 1)

	if !forceRefresh {
		payload, err := c.cache.GetResponse(key)
		if err == nil {
			items, err := decodeItems(key, payload)
			if err == nil {
				return items, "cache", nil
			}
			// A corrupt entry is dropped and refetched
			c.logger.Warn().Err(err).Str("cache_key", key.String()).Msg("Dropping undecodable cached page")
			c.cache.DeleteResponse(key)
		}
	}

	fetchCtx, done := withGeneration(ctx, genCtx)
	items, err := c.gateway.FetchPage(fetchCtx, filter, 1, c.config.PageSize)
	done()
	if err != nil {
		return nil, "gateway", err
	}

	payload, err := encodeItems(items)
	if err != nil {
		c.logger.Warn().Err(err).Str("cache_key", key.String()).Msg("Failed to encode page for cache")
	} else {
		c.cache.SetResponse(key, payload)
	}

	return items, "gateway", nil
}

// beginGenerationLocked starts a new generation and cancels the previous one.
// Must be called with mu held.
func (c *Controller) beginGenerationLocked() (uint64, context.Context) {
	c.genCancel()
	c.generation++
	c.genCtx, c.genCancel = context.WithCancel(context.Background())
	c.state.Generation = c.generation
	return c.generation, c.genCtx
}

// pendingLocked lists the items of batch whose auxiliary resource is not yet
// resolved. Must be called with mu held.
func (c *Controller) pendingLocked(batch []feed.Item) []resolveJob {
	seen := make(map[int]struct{}, len(batch))
	var jobs []resolveJob
	for _, item := range batch {
		if !item.HasAuxiliaryResource() {
			continue
		}
		if _, ok := c.state.AuxURLs[item.ID]; ok {
			continue
		}
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		jobs = append(jobs, resolveJob{ItemID: item.ID, AuxID: item.AuxiliaryResourceID})
	}
	return jobs
}

// launchBatchLocked resolves jobs in the background, merging each result as
// it arrives. Must be called with mu held.
func (c *Controller) launchBatchLocked(gen uint64, genCtx context.Context, jobs []resolveJob) {
	// Close may already be waiting on batches
	if c.closed || len(jobs) == 0 {
		return
	}
	batchID := uuid.NewString()

	c.batches.Add(1)
	go func() {
		defer c.batches.Done()

		resolved, failed := c.resolver.ResolveBatch(genCtx, batchID, jobs, func(itemID int, url string) {
			c.merge(gen, itemID, url)
		})

		c.logger.Debug().
			Str("batch_id", batchID).
			Uint64("generation", gen).
			Int("jobs", len(jobs)).
			Int("resolved", resolved).
			Int("failed", failed).
			Msg("Resolution batch finished")
	}()
}

// merge records one resolved URL unless the batch belongs to an older
// generation or the id is already resolved.
func (c *Controller) merge(gen uint64, itemID int, url string) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		supersededResultsTotal.Inc()
		return
	}
	if _, ok := c.state.AuxURLs[itemID]; ok {
		c.mu.Unlock()
		return
	}
	c.state.AuxURLs[itemID] = url
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) discard(kind string, gen uint64, filter feed.Filter) {
	supersededResultsTotal.Inc()
	pageLoadsTotal.WithLabelValues(kind, "gateway", "superseded").Inc()
	c.logger.Warn().
		Str("filter", filter.String()).
		Uint64("generation", gen).
		Msg("Discarding result of superseded load")
}

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// withGeneration derives a context that ends when either ctx or genCtx ends.
func withGeneration(ctx, genCtx context.Context) (context.Context, context.CancelFunc) {
	fetchCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(genCtx, cancel)
	return fetchCtx, func() {
		stop()
		cancel()
	}
}
