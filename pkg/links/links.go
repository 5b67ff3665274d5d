// Package links parses RFC 8288 Link headers into named relations.
//
// GitHub paginates list endpoints by returning a header such as:
//
//	Link: <https://api.github.com/repositories/1/issues?page=2>; rel="next",
//	      <https://api.github.com/repositories/1/issues?page=5>; rel="last"
//
// Parse turns that into a Rels map keyed by relation name. Malformed entries
// are skipped rather than reported, so a broken header simply yields fewer
// relations.
package links

import (
	"net/url"
	"strconv"
	"strings"
)

// Relation names used by GitHub pagination.
const (
	RelNext  = "next"
	RelPrev  = "prev"
	RelFirst = "first"
	RelLast  = "last"
)

// Link is one followable relation from a Link header.
type Link struct {
	// URL is the raw target between the angle brackets.
	URL string

	// Rel is the relation name (e.g. "next").
	Rel string

	// Params holds any other link parameters (e.g. "type").
	Params map[string]string
}

// Query returns the parsed query string of the link target.
// Returns empty values if the URL cannot be parsed.
func (l Link) Query() url.Values {
	u, err := url.Parse(l.URL)
	if err != nil {
		return url.Values{}
	}
	return u.Query()
}

// Page returns the integer "page" query parameter of the link target.
func (l Link) Page() (int, bool) {
	raw := l.Query().Get("page")
	if raw == "" {
		return 0, false
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}

// Rels maps relation names to links.
type Rels map[string]Link

// Get returns the link for a relation.
func (r Rels) Get(rel string) (Link, bool) {
	if r == nil {
		return Link{}, false
	}
	l, ok := r[rel]
	return l, ok
}

// Has reports whether the relation is present.
func (r Rels) Has(rel string) bool {
	_, ok := r.Get(rel)
	return ok
}

// Page returns the page number carried by a relation's target.
func (r Rels) Page(rel string) (int, bool) {
	l, ok := r.Get(rel)
	if !ok {
		return 0, false
	}
	return l.Page()
}

// Parse parses a Link header value. Multiple relations per entry
// (rel="next last") are each recorded.
func Parse(header string) Rels {
	rels := Rels{}
	if strings.TrimSpace(header) == "" {
		return rels
	}

	for _, entry := range splitEntries(header) {
		link, names, ok := parseEntry(entry)
		if !ok {
			continue
		}
		for _, name := range names {
			l := link
			l.Rel = name
			rels[name] = l
		}
	}

	return rels
}

// ParseAll parses every Link header value of a response.
func ParseAll(values []string) Rels {
	rels := Rels{}
	for _, v := range values {
		for name, l := range Parse(v) {
			rels[name] = l
		}
	}
	return rels
}

// splitEntries splits on commas that are outside angle brackets and quotes.
func splitEntries(header string) []string {
	var (
		entries  []string
		start    int
		inURL    bool
		inQuotes bool
	)
	for i, ch := range header {
		switch {
		case ch == '<' && !inQuotes:
			inURL = true
		case ch == '>' && !inQuotes:
			inURL = false
		case ch == '"' && !inURL:
			inQuotes = !inQuotes
		case ch == ',' && !inURL && !inQuotes:
			entries = append(entries, header[start:i])
			start = i + 1
		}
	}
	return append(entries, header[start:])
}

func parseEntry(entry string) (Link, []string, bool) {
	entry = strings.TrimSpace(entry)
	if !strings.HasPrefix(entry, "<") {
		return Link{}, nil, false
	}
	end := strings.Index(entry, ">")
	if end < 0 {
		return Link{}, nil, false
	}

	link := Link{
		URL:    strings.TrimSpace(entry[1:end]),
		Params: map[string]string{},
	}

	var names []string
	for _, param := range strings.Split(entry[end+1:], ";") {
		param = strings.TrimSpace(param)
		if param == "" {
			continue
		}
		key, value, found := strings.Cut(param, "=")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if key == "rel" {
			names = append(names, strings.Fields(strings.ToLower(value))...)
			continue
		}
		link.Params[key] = value
	}

	if link.URL == "" || len(names) == 0 {
		return Link{}, nil, false
	}
	return link, names, true
}
