package wordpress

import (
	"fmt"

	"github.com/Sternrassler/feedcache/pkg/feed"
)

// codeInvalidPageNumber is returned (HTTP 400) for a page past the last one.
const codeInvalidPageNumber = "rest_post_invalid_page_number"

type rendered struct {
	Rendered string `json:"rendered"`
}

// post is a WordPress REST v2 post.
type post struct {
	ID            int      `json:"id"`
	Date          string   `json:"date"`
	Title         rendered `json:"title"`
	Content       rendered `json:"content"`
	Excerpt       rendered `json:"excerpt"`
	FeaturedMedia int      `json:"featured_media"`
}

func (p post) toItem() feed.Item {
	return feed.Item{
		ID:                  p.ID,
		PublishedAt:         p.Date,
		Title:               p.Title.Rendered,
		Body:                p.Content.Rendered,
		Excerpt:             p.Excerpt.Rendered,
		AuxiliaryResourceID: p.FeaturedMedia,
	}
}

// media is a WordPress REST v2 attachment.
type media struct {
	ID        int    `json:"id"`
	SourceURL string `json:"source_url"`
}

// category is a WordPress REST v2 category.
type category struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

func (c category) toCategory() feed.Category {
	return feed.Category{
		ID:        c.ID,
		Name:      c.Name,
		Slug:      c.Slug,
		ItemCount: c.Count,
	}
}

// APIError is the error body WordPress returns with 4xx/5xx responses.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
