package crawlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/osintkit/tiercrawl/internal/utils"
)

// PagePool reuses browser tabs across renders. Creating a tab is far more
// expensive than resetting one, so tabs are created lazily up to max and
// recycled through the idle channel.
type PagePool struct {
	browser *rod.Browser
	idle    chan *rod.Page
	max     int

	mu      sync.Mutex
	created int
	pages   map[*rod.Page]bool
	closed  bool
}

func NewPagePool(browser *rod.Browser, max int) *PagePool {
	if max < 1 {
		max = 1
	}
	return &PagePool{
		browser: browser,
		idle:    make(chan *rod.Page, max),
		max:     max,
		pages:   make(map[*rod.Page]bool),
	}
}

// Acquire returns an idle tab, creating a new one while under the cap, and
// otherwise blocks until a tab is released or ctx is cancelled.
func (p *PagePool) Acquire(ctx context.Context) (*rod.Page, error) {
	select {
	case page := <-p.idle:
		return page, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("page pool is closed")
	}
	if p.created < p.max {
		p.created++
		p.mu.Unlock()
		page, err := p.browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, fmt.Errorf("create tab: %w", err)
		}
		p.mu.Lock()
		p.pages[page] = true
		p.mu.Unlock()
		return page, nil
	}
	p.mu.Unlock()

	select {
	case page := <-p.idle:
		return page, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release resets a tab and returns it to the pool. A tab that fails to
// reset is destroyed instead of poisoning the next render.
func (p *PagePool) Release(page *rod.Page) {
	if page == nil {
		return
	}
	if err := page.Navigate("about:blank"); err != nil {
		utils.Debugf("reset tab failed, destroying: %v", err)
		p.destroy(page)
		return
	}
	select {
	case p.idle <- page:
	default:
		p.destroy(page)
	}
}

func (p *PagePool) destroy(page *rod.Page) {
	p.mu.Lock()
	delete(p.pages, page)
	p.created--
	p.mu.Unlock()
	if err := page.Close(); err != nil {
		utils.Debugf("close tab: %v", err)
	}
}

// Close destroys every tab. Safe to call once outstanding renders finished.
func (p *PagePool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	pages := make([]*rod.Page, 0, len(p.pages))
	for page := range p.pages {
		pages = append(pages, page)
	}
	p.pages = map[*rod.Page]bool{}
	p.mu.Unlock()

	for _, page := range pages {
		if err := page.Close(); err != nil {
			utils.Debugf("close tab: %v", err)
		}
	}
}
