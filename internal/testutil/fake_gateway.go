package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Sternrassler/feedcache/pkg/feed"
)

// PageRequest records one FetchPage call.
type PageRequest struct {
	Filter   feed.Filter
	Page     int
	PageSize int
}

// FakeGateway is an in-memory feed.Gateway. Pages are keyed by filter and
// page number; unknown pages are empty. Failures can be queued per page and
// fetches can be held open to simulate slow responses.
type FakeGateway struct {
	mu         sync.Mutex
	pages      map[string]map[int][]feed.Item
	pageErrs   map[string]map[int][]error
	gates      map[string]map[int]chan struct{}
	aux        map[int]string
	auxErrs    map[int]error
	categories []feed.Category
	catErr     error
	requests   []PageRequest

	auxCalls      atomic.Int64
	categoryCalls atomic.Int64
	inFlightAux   atomic.Int64
	maxInFlight   atomic.Int64
	auxGate       chan struct{}
}

// NewFakeGateway creates an empty fake gateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		pages:    make(map[string]map[int][]feed.Item),
		pageErrs: make(map[string]map[int][]error),
		gates:    make(map[string]map[int]chan struct{}),
		aux:      make(map[int]string),
		auxErrs:  make(map[int]error),
	}
}

// SetPage serves items for filter and page.
func (g *FakeGateway) SetPage(filter feed.Filter, page int, items []feed.Item) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := filter.String()
	if g.pages[key] == nil {
		g.pages[key] = make(map[int][]feed.Item)
	}
	g.pages[key][page] = items
}

// FailPage makes the next fetch of filter and page return err. Queued errors
// are consumed one per call.
func (g *FakeGateway) FailPage(filter feed.Filter, page int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := filter.String()
	if g.pageErrs[key] == nil {
		g.pageErrs[key] = make(map[int][]error)
	}
	g.pageErrs[key][page] = append(g.pageErrs[key][page], err)
}

// HoldPage blocks fetches of filter and page until the returned release
// function is called or the fetch context ends.
func (g *FakeGateway) HoldPage(filter feed.Filter, page int) (release func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := filter.String()
	if g.gates[key] == nil {
		g.gates[key] = make(map[int]chan struct{})
	}
	gate := make(chan struct{})
	g.gates[key][page] = gate

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// SetAux resolves auxiliary resource id to url.
func (g *FakeGateway) SetAux(id int, url string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.aux[id] = url
}

// FailAux makes every resolution of id return err.
func (g *FakeGateway) FailAux(id int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.auxErrs[id] = err
}

// HoldAux blocks every resolution until the returned release function is called.
func (g *FakeGateway) HoldAux() (release func()) {
	gate := make(chan struct{})
	g.mu.Lock()
	g.auxGate = gate
	g.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// SetCategories serves cats from FetchCategories, or err if non-nil.
func (g *FakeGateway) SetCategories(cats []feed.Category, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.categories = cats
	g.catErr = err
}

// FetchPage implements feed.Gateway.
func (g *FakeGateway) FetchPage(ctx context.Context, filter feed.Filter, page, pageSize int) ([]feed.Item, error) {
	key := filter.String()

	g.mu.Lock()
	g.requests = append(g.requests, PageRequest{Filter: filter, Page: page, PageSize: pageSize})
	gate := g.gates[key][page]
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &feed.TransportError{Endpoint: "posts", Class: feed.ErrorClassNetwork, Err: ctx.Err()}
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if errs := g.pageErrs[key][page]; len(errs) > 0 {
		g.pageErrs[key][page] = errs[1:]
		return nil, errs[0]
	}
	return append([]feed.Item(nil), g.pages[key][page]...), nil
}

// ResolveAuxiliaryResource implements feed.Gateway.
func (g *FakeGateway) ResolveAuxiliaryResource(ctx context.Context, id int) (feed.AuxResource, error) {
	g.auxCalls.Add(1)
	n := g.inFlightAux.Add(1)
	defer g.inFlightAux.Add(-1)
	for {
		peak := g.maxInFlight.Load()
		if n <= peak || g.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	g.mu.Lock()
	gate := g.auxGate
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return feed.AuxResource{}, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.auxErrs[id]; err != nil {
		return feed.AuxResource{}, err
	}
	url, ok := g.aux[id]
	if !ok {
		return feed.AuxResource{}, &feed.NotFoundError{Resource: "media", ID: id}
	}
	return feed.AuxResource{ID: id, ResolvedURL: url}, nil
}

// FetchCategories implements feed.Gateway.
func (g *FakeGateway) FetchCategories(ctx context.Context) ([]feed.Category, error) {
	g.categoryCalls.Add(1)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.catErr != nil {
		return nil, g.catErr
	}
	return append([]feed.Category(nil), g.categories...), nil
}

// Requests returns every FetchPage call so far.
func (g *FakeGateway) Requests() []PageRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]PageRequest(nil), g.requests...)
}

// PageCalls returns the number of FetchPage calls.
func (g *FakeGateway) PageCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// AuxCalls returns the number of ResolveAuxiliaryResource calls.
func (g *FakeGateway) AuxCalls() int { return int(g.auxCalls.Load()) }

// CategoryCalls returns the number of FetchCategories calls.
func (g *FakeGateway) CategoryCalls() int { return int(g.categoryCalls.Load()) }

// MaxConcurrentAux returns the highest number of simultaneous resolutions seen.
func (g *FakeGateway) MaxConcurrentAux() int { return int(g.maxInFlight.Load()) }

// Items returns items with ids from..to inclusive, each with auxiliary
// resource id 100+id.
func Items(from, to int) []feed.Item {
	items := make([]feed.Item, 0, to-from+1)
	for id := from; id <= to; id++ {
		items = append(items, feed.Item{
			ID:                  id,
			PublishedAt:         "2026-02-01T12:00:00",
			Title:               fmt.Sprintf("Item %d", id),
			Body:                fmt.Sprintf("<p>Item %d</p>", id),
			AuxiliaryResourceID: 100 + id,
		})
	}
	return items
}

// AuxURL is the URL FakeGateway users conventionally register for aux id.
func AuxURL(id int) string {
	return fmt.Sprintf("https://cdn.example.test/media/%d.jpg", id)
}
