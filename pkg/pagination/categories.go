package pagination

import (
	"context"
	"encoding/json"

	"github.com/Sternrassler/feedcache/pkg/feed"
)

// Categories returns the feed's categories, from the response cache unless
// forceRefresh is set. The list is always refetched as a whole.
func (c *Controller) Categories(ctx context.Context, forceRefresh bool) ([]feed.Category, error) {
	if !forceRefresh {
		if payload, err := c.cache.GetResponse(categoriesKey); err == nil {
			var categories []feed.Category
			if err := json.Unmarshal(payload, &categories); err == nil {
				return categories, nil
			}
			c.cache.DeleteResponse(categoriesKey)
		}
	}

	categories, err := c.gateway.FetchCategories(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to fetch categories")
		return nil, err
	}

	if payload, err := json.Marshal(categories); err == nil {
		c.cache.SetResponse(categoriesKey, payload)
	}

	c.logger.Debug().Int("categories", len(categories)).Msg("Fetched categories")
	return categories, nil
}
