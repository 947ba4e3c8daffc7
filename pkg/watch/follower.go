// Package watch turns a growing HTML file into a mutation stream. A Follower
// tails the file, parses each appended chunk as an HTML fragment, grafts the
// new nodes into the live document, and emits them as added-node batches for
// the pipeline to consume.
package watch

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Follower watches one HTML file for appended content.
type Follower struct {
	mu      sync.Mutex
	path    string
	doc     *goquery.Document
	docMu   *sync.RWMutex
	watcher *fsnotify.Watcher
	added   chan []*html.Node
	offset  int64
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewFollower creates a follower for path over an already-parsed document.
// Content present at startOffset has been parsed into doc already; only bytes
// appended past it are treated as mutations. docMu is the lock guarding doc:
// grafting runs on the watcher goroutine while the consumer may be reading or
// rewriting the same tree, so the follower takes the write side to append.
func NewFollower(path string, doc *goquery.Document, docMu *sync.RWMutex, startOffset int64, logger *slog.Logger) (*Follower, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Follower{
		path:    path,
		doc:     doc,
		docMu:   docMu,
		watcher: watcher,
		added:   make(chan []*html.Node, 16),
		offset:  startOffset,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Added implements pipeline.Mutations. The channel closes when the follower
// stops.
func (f *Follower) Added() <-chan []*html.Node {
	return f.added
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
func (f *Follower) Start() error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = true
	f.mu.Unlock()

	// Watch the directory: editors and appenders often replace or recreate
	// the file, and directory watches survive that.
	if err := f.watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", f.path, err)
	}

	go f.run()
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (f *Follower) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	f.mu.Unlock()

	close(f.stopCh)
	<-f.doneCh

	if err := f.watcher.Close(); err != nil {
		f.logger.Error("failed to close watcher", "error", err)
	}
}

func (f *Follower) run() {
	defer close(f.doneCh)
	defer close(f.added)

	for {
		select {
		case <-f.stopCh:
			return

		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if event.Name != f.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			nodes, err := f.consumeAppended()
			if err != nil {
				f.logger.Warn("failed to read appended content", "error", err)
				continue
			}
			if len(nodes) == 0 {
				continue
			}
			select {
			case f.added <- nodes:
			case <-f.stopCh:
				return
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("watch error", "error", err)
		}
	}
}

// consumeAppended reads everything past the last offset, parses it as a body
// fragment, and grafts the resulting nodes onto the document body.
func (f *Follower) consumeAppended() ([]*html.Node, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	// A truncated file starts over.
	if info.Size() < f.offset {
		f.offset = 0
	}
	if info.Size() == f.offset {
		return nil, nil
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	f.offset += int64(len(data))

	return f.graft(data)
}

// graft parses data as a fragment in body context and appends the parsed
// nodes to the live document's body.
func (f *Follower) graft(data []byte) ([]*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	fragments, err := html.ParseFragment(bytes.NewReader(data), context)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}

	f.docMu.Lock()
	defer f.docMu.Unlock()

	body := f.doc.Find("body")
	if body.Length() == 0 {
		return nil, fmt.Errorf("document has no body")
	}
	parent := body.Get(0)

	var nodes []*html.Node
	for _, n := range fragments {
		parent.AppendChild(n)
		nodes = append(nodes, n)
	}
	return nodes, nil
}
