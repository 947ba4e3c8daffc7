package pipeline

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// appendFragment parses markup in body context and grafts the nodes onto the
// document body, returning the added roots. Mirrors what a mutation source
// does before emitting a batch.
func appendFragment(doc *goquery.Document, markup string) ([]*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	fragments, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, err
	}

	body := doc.Find("body")
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
