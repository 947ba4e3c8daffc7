// Package pipeline drives the per-node update flow: candidate collection,
// classification, cache lookup, resolution, and the in-place display write.
//
// Per node the flow is a small state machine:
//
//	unseen -> classified(handle) -> displayed(handle) -> displayed(label)
//
// with rejected as the terminal state when classification fails. A node
// carries at most one marker; once attached, its handle never changes for the
// node's lifetime.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"nameglass/pkg/cache"
	"nameglass/pkg/classify"
	"nameglass/pkg/resolver"
)

// marker records what a classified node represents and what it currently
// shows. shown lets a later render find the text it previously wrote even
// after the label changes under revalidation; sigil remembers whether the
// original markup carried a leading "@" so toggling restores it.
type marker struct {
	handle string
	shown  string
	sigil  bool
}

// Pipeline owns the session-scoped mutable state. mu guards the enabled flag
// and the marker table. docMu guards the node tree itself: batches run in
// parallel and candidate nodes can nest, so one goroutine's classification
// reads the same text nodes another goroutine's display write rewrites.
// Classification holds the read side, writes hold the write side.
type Pipeline struct {
	mu      sync.Mutex
	docMu   sync.RWMutex
	enabled bool
	markers map[*html.Node]*marker

	doc       *goquery.Document
	cache     *cache.Cache
	resolver  *resolver.Resolver
	logger    *slog.Logger
	batchSize int
}

// New creates a pipeline over doc. The enabled flag is the value loaded from
// the durable store at session start.
func New(doc *goquery.Document, c *cache.Cache, r *resolver.Resolver, enabled bool, batchSize int, logger *slog.Logger) *Pipeline {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Pipeline{
		enabled:   enabled,
		markers:   make(map[*html.Node]*marker),
		doc:       doc,
		cache:     c,
		resolver:  r,
		logger:    logger,
		batchSize: batchSize,
	}
}

// DocLock exposes the lock guarding the node tree so mutation sources that
// graft into the same document can exclude in-flight reads and renders.
func (p *Pipeline) DocLock() *sync.RWMutex {
	return &p.docMu
}

// Enabled reports the session's current enabled flag.
func (p *Pipeline) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// SetEnabled flips the in-session flag. Persistence is the controller's job.
func (p *Pipeline) SetEnabled(enabled bool) {
	p.mu.Lock()
	p.enabled = enabled
	p.mu.Unlock()
}

// Scan walks the whole document once, feeding every candidate node through
// the per-node pipeline. Safe to call repeatedly: marked nodes are skipped,
// so a rescan only picks up nodes never classified before.
func (p *Pipeline) Scan(ctx context.Context) {
	var nodes []*html.Node
	p.docMu.RLock()
	p.doc.Find(classify.CandidateSelector).Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, s.Get(0))
	})
	p.docMu.RUnlock()
	p.processBatches(ctx, nodes)
}

// Process feeds an added subtree (or single node) through the pipeline,
// collecting the candidates it contains. This is the entry point for
// mutation-observed content.
func (p *Pipeline) Process(ctx context.Context, added []*html.Node) {
	var nodes []*html.Node
	p.docMu.RLock()
	for _, n := range added {
		if n == nil || n.Type != html.ElementNode {
			continue
		}
		root := selectionFor(n)
		if root.Is(classify.CandidateSelector) {
			nodes = append(nodes, n)
		}
		root.Find(classify.CandidateSelector).Each(func(_ int, s *goquery.Selection) {
			nodes = append(nodes, s.Get(0))
		})
	}
	p.docMu.RUnlock()
	p.processBatches(ctx, nodes)
}

// processBatches dispatches nodes in fixed-size batches. Nodes within a batch
// update concurrently with no defined order; a batch is dispatched only after
// the previous batch's goroutines were all started and awaited.
func (p *Pipeline) processBatches(ctx context.Context, nodes []*html.Node) {
	for start := 0; start < len(nodes); start += p.batchSize {
		end := min(start+p.batchSize, len(nodes))

		var wg sync.WaitGroup
		for _, n := range nodes[start:end] {
			wg.Add(1)
			go func(n *html.Node) {
				defer wg.Done()
				p.processNode(ctx, n)
			}(n)
		}
		wg.Wait()

		if ctx.Err() != nil {
			return
		}
	}
}

// processNode runs the state machine for one node.
func (p *Pipeline) processNode(ctx context.Context, n *html.Node) {
	p.mu.Lock()
	if _, seen := p.markers[n]; seen {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.docMu.RLock()
	handle := classify.Classify(selectionFor(n))
	p.docMu.RUnlock()
	if handle == "" {
		return // rejected: terminal, no marker
	}

	p.mu.Lock()
	if _, seen := p.markers[n]; seen {
		p.mu.Unlock()
		return
	}
	m := &marker{handle: handle}
	p.markers[n] = m
	enabled := p.enabled
	p.mu.Unlock()

	// The node always shows something immediately, even before resolution.
	p.render(n, m)

	if !enabled {
		return
	}

	entry, hit := p.cache.Get(handle)
	if hit {
		p.render(n, m)
		if p.cache.IsStale(entry) {
			// Stale-while-revalidate: serve the cached label, refresh in the
			// background and re-render when the fresh value lands.
			go func() {
				p.resolver.Resolve(ctx, handle)
				p.render(n, m)
			}()
		}
		return
	}

	p.resolver.Resolve(ctx, handle)
	p.render(n, m)
}

// RenderAll re-renders every marked node from current state. It is
// idempotent: rendering twice in a row leaves the document unchanged, so a
// later toggle's render supersedes an earlier one cleanly.
func (p *Pipeline) RenderAll() {
	p.mu.Lock()
	nodes := make([]*html.Node, 0, len(p.markers))
	for n := range p.markers {
		nodes = append(nodes, n)
	}
	p.mu.Unlock()

	for _, n := range nodes {
		p.mu.Lock()
		m := p.markers[n]
		p.mu.Unlock()
		if m != nil {
			p.render(n, m)
		}
	}
}

// ResetMarkers drops the whole marker table, forcing the next scan to
// reclassify from scratch.
func (p *Pipeline) ResetMarkers() {
	p.mu.Lock()
	p.markers = make(map[*html.Node]*marker)
	p.mu.Unlock()
}

// Marked reports how many nodes currently carry a marker.
func (p *Pipeline) Marked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.markers)
}

// render decides what the node should show right now and writes it. The
// enabled flag is rechecked here, so a resolution completing after a disable
// cannot visually override the user's toggle.
func (p *Pipeline) render(n *html.Node, m *marker) {
	p.mu.Lock()
	enabled := p.enabled
	p.mu.Unlock()

	want := m.handle
	tooltip := false
	if enabled {
		if entry, ok := p.cache.Get(m.handle); ok && entry.HasRealLabel() {
			want = entry.Label
			tooltip = true
		}
	}

	p.docMu.Lock()
	defer p.docMu.Unlock()
	writeDisplay(n, m, want, tooltip)
}

func selectionFor(n *html.Node) *goquery.Selection {
	return goquery.NewDocumentFromNode(n).Selection
}
