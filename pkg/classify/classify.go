// Package classify decides whether a markup node displays a resolvable handle
// and extracts the handle text. Classification is pure: it reads node state
// and returns a result, nothing else.
//
// The heuristics trade recall for precision. A false positive corrupts the
// display; a miss just leaves a handle visible, which is safe.
package classify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxHandleLen bounds handle length. Visible text may exceed it by one
// character to allow for a leading sigil ("@handle").
const MaxHandleLen = 39

// CandidateSelector is the structural prefilter: the pipeline only feeds
// nodes matching it into Classify. Classify itself re-checks everything, so
// the prefilter is purely a cost optimization.
const CandidateSelector = "a[href], [data-username], .user-mention, .commit-author, .author, .assignee"

var (
	handlePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?$`)
	// UI affordances, not identifiers: bare verbs and trailing counters.
	navTextPattern = regexp.MustCompile(`(?i)^(open|closed?|view|edit|show|hide|settings|more|merged?)$|\s\d+$`)
	commitHex      = regexp.MustCompile(`^[0-9a-f]{7,40}$`)
	authorQuery    = regexp.MustCompile(`(?i)(?:^|\s)author:([A-Za-z0-9-]+)`)
)

// Path segments that never identify a user.
var reservedPaths = map[string]bool{
	"orgs": true, "organizations": true, "settings": true, "search": true,
	"notifications": true, "marketplace": true, "explore": true, "topics": true,
	"trending": true, "collections": true, "sponsors": true, "about": true,
	"pricing": true, "features": true, "apps": true, "login": true, "join": true,
	"contact": true, "pulls": true, "issues": true, "new": true, "dashboard": true,
	"account": true, "enterprise": true, "security": true, "site": true,
	"codespaces": true, "readme": true,
}

// Node roles whose text is only ever a mention/author/assignee handle.
var handleOnlyClasses = []string{"user-mention", "assignee"}

// Classify returns the handle a node displays, or "" when the node does not
// represent one. It never panics and never mutates the node.
func Classify(s *goquery.Selection) string {
	if s == nil || s.Length() == 0 {
		return ""
	}

	text := strings.TrimSpace(s.Text())

	// Structural disqualifications.
	switch goquery.NodeName(s) {
	case "img", "svg", "image":
		return ""
	}
	if text == "" || len(text) > MaxHandleLen+1 {
		return ""
	}
	if s.Closest(`[class*="avatar"]`).Length() > 0 {
		return ""
	}
	if isInteractive(s) {
		return ""
	}

	// UI affordance text.
	if navTextPattern.MatchString(text) {
		return ""
	}

	// Commit-attribution text inside a timeline item is matched against the
	// item's authoritative author link, not its own target.
	if s.HasClass("commit-author") {
		if handle := timelineAuthor(s, text); handle != "" {
			return handle
		}
	}

	// A malformed href is no usable link; the identity fallbacks below still
	// get their turn.
	href, hasHref := linkTarget(s)
	if u, err := url.Parse(href); hasHref && err == nil {
		segments := pathSegments(u)

		for _, seg := range segments {
			if commitHex.MatchString(seg) {
				return ""
			}
		}

		// An authorship filter in the query wins even when the path itself
		// points at an excluded section (search, commit listings).
		if handle := fromAuthorQuery(u); handle != "" && textMatches(text, handle) {
			return handle
		}

		if len(segments) > 0 && reservedPaths[strings.ToLower(segments[0])] {
			return ""
		}
		if len(segments) > 0 && ValidHandle(segments[0]) && textMatches(text, segments[0]) {
			return segments[0]
		}
	}

	// Explicit identity attribute.
	if handle, ok := s.Attr("data-username"); ok && ValidHandle(handle) {
		return handle
	}

	// Roles that only ever contain a handle.
	for _, class := range handleOnlyClasses {
		if s.HasClass(class) {
			handle := strings.TrimPrefix(text, "@")
			if ValidHandle(handle) {
				return handle
			}
		}
	}

	return ""
}

// ValidHandle reports whether s is shaped like a handle: bounded, neither
// starting nor ending with a hyphen, alphanumeric-and-hyphen only.
func ValidHandle(s string) bool {
	return s != "" && len(s) <= MaxHandleLen && handlePattern.MatchString(s)
}

func isInteractive(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "button", "input", "select", "textarea":
		return true
	}
	if role, ok := s.Attr("role"); ok {
		switch role {
		case "button", "menuitem", "tab", "menu":
			return true
		}
	}
	return s.Closest("button, [role=button]").Length() > 0
}

// linkTarget returns the href governing the node: its own, or the nearest
// ancestor link's.
func linkTarget(s *goquery.Selection) (string, bool) {
	if href, ok := s.Attr("href"); ok {
		return href, true
	}
	return s.Closest("a[href]").Attr("href")
}

func pathSegments(u *url.URL) []string {
	trimmed := strings.Trim(u.Path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// fromAuthorQuery extracts a handle from an authorship filter in the link's
// query string: either author=<handle> or a search query with author:<handle>.
func fromAuthorQuery(u *url.URL) string {
	q := u.Query()
	if handle := q.Get("author"); ValidHandle(handle) {
		return handle
	}
	if m := authorQuery.FindStringSubmatch(q.Get("q")); m != nil && ValidHandle(m[1]) {
		return m[1]
	}
	return ""
}

// timelineAuthor resolves a commit-attribution node by locating a sibling
// authoritative link in the same timeline item whose target matches the
// node's visible text. This avoids attributing commit metadata text to the
// wrong handle.
func timelineAuthor(s *goquery.Selection, text string) string {
	item := s.Closest(".TimelineItem, .timeline-item")
	if item.Length() == 0 {
		return ""
	}

	var handle string
	item.Find("a.author[href], a[data-hovercard-type=user][href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		u, err := url.Parse(href)
		if err != nil {
			return true
		}
		segments := pathSegments(u)
		if len(segments) == 0 || !ValidHandle(segments[0]) {
			return true
		}
		if textMatches(text, segments[0]) {
			handle = segments[0]
			return false
		}
		return true
	})
	return handle
}

// textMatches compares visible text against a candidate handle,
// case-insensitively and tolerating a leading sigil.
func textMatches(text, handle string) bool {
	return strings.EqualFold(strings.TrimPrefix(text, "@"), handle)
}
