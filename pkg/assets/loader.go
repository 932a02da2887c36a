// Package assets serves binary assets such as thumbnails through the asset
// cache, downloading them on a miss.
package assets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/feedcache/pkg/cache"
	"github.com/Sternrassler/feedcache/pkg/feed"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultDownloadTimeout bounds one shared download.
const DefaultDownloadTimeout = 30 * time.Second

// Loader returns asset bytes by URL. Concurrent loads of one URL share a
// single download. The download is not tied to any one caller: a caller that
// gives up stops waiting, the download itself finishes and is cached.
type Loader struct {
	fetcher feed.AssetFetcher
	cache   *cache.Manager
	group   singleflight.Group
	timeout time.Duration
	logger  zerolog.Logger
}

// NewLoader creates a loader downloading through fetcher.
func NewLoader(fetcher feed.AssetFetcher, cacheManager *cache.Manager) (*Loader, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("asset fetcher is required")
	}
	if cacheManager == nil {
		return nil, fmt.Errorf("cache manager is required")
	}

	return &Loader{
		fetcher: fetcher,
		cache:   cacheManager,
		timeout: DefaultDownloadTimeout,
		logger:  log.With().Str("component", "asset-loader").Logger(),
	}, nil
}

// Load returns the asset at url from the cache, or downloads and caches it.
func (l *Loader) Load(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("asset url is empty")
	}

	blob, err := l.cache.GetAsset(url)
	if err == nil {
		return blob, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("asset cache get: %w", err)
	}

	ch := l.group.DoChan(url, func() (interface{}, error) {
		downloadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()

		blob, err := l.fetcher.FetchAsset(downloadCtx, url)
		if err != nil {
			return nil, err
		}
		l.cache.SetAsset(url, blob)
		return blob, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("download asset: %w", ctx.Err())
	}
	if res.Err != nil {
		l.logger.Warn().Err(res.Err).Str("url", url).Msg("Asset download failed")
		return nil, fmt.Errorf("download asset: %w", res.Err)
	}

	blob = res.Val.([]byte)
	l.logger.Debug().
		Str("url", url).
		Int("bytes", len(blob)).
		Bool("shared", res.Shared).
		Msg("Downloaded asset")

	return blob, nil
}
