package extract

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"vidparse/internal/httputil"
)

// mobileUserAgent is used for share pages that only embed their state for
// mobile browsers.
const mobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

// page lazily fetches and parses one HTML document. Every accessor after
// the first reuses the parsed result, including a failed fetch.
type page struct {
	client    *http.Client
	url       string
	referer   string
	userAgent string

	once sync.Once
	doc  *goquery.Document

	mu     sync.Mutex
	states map[string]gjson.Result
}

func newPage(client *http.Client, rawURL, referer string) *page {
	return &page{client: client, url: rawURL, referer: referer}
}

// document returns the parsed page, or nil if it could not be fetched.
func (p *page) document(ctx context.Context) *goquery.Document {
	p.once.Do(func() {
		body, err := p.fetch(ctx)
		if err != nil {
			return
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return
		}
		p.doc = doc
	})
	return p.doc
}

func (p *page) fetch(ctx context.Context) ([]byte, error) {
	if p.userAgent == "" {
		return httputil.GetBody(ctx, p.client, p.url, p.referer)
	}
	req, err := httputil.NewRequest(ctx, p.url, p.referer)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	return httputil.DoBody(p.client, req)
}

// meta returns the content of the first non-empty <meta> whose property or
// name matches one of keys.
func (p *page) meta(ctx context.Context, keys ...string) string {
	doc := p.document(ctx)
	if doc == nil {
		return ""
	}
	for _, key := range keys {
		sel := doc.Find(`meta[property="` + key + `"], meta[name="` + key + `"], meta[itemprop="` + key + `"]`)
		for i := range sel.Nodes {
			if v := strings.TrimSpace(sel.Eq(i).AttrOr("content", "")); v != "" {
				return v
			}
		}
	}
	return ""
}

// title returns the document <title>.
func (p *page) title(ctx context.Context) string {
	doc := p.document(ctx)
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// state finds the inline script assigning to marker (for example
// "window.__INITIAL_STATE__") and returns the assigned JSON object. The
// result is cached per marker.
func (p *page) state(ctx context.Context, marker string) gjson.Result {
	p.mu.Lock()
	if r, ok := p.states[marker]; ok {
		p.mu.Unlock()
		return r
	}
	p.mu.Unlock()

	var result gjson.Result
	if doc := p.document(ctx); doc != nil {
		doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			obj := assignedObject(s.Text(), marker)
			if obj == "" {
				return true
			}
			// Some pages serialize with bare undefined, which is not JSON.
			obj = strings.ReplaceAll(obj, ":undefined", ":null")
			if !gjson.Valid(obj) {
				return true
			}
			result = gjson.Parse(obj)
			return false
		})
	}

	p.mu.Lock()
	if p.states == nil {
		p.states = make(map[string]gjson.Result)
	}
	p.states[marker] = result
	p.mu.Unlock()
	return result
}

// assignedObject returns the JSON object literal assigned to marker in
// script, or "" if there is none.
func assignedObject(script, marker string) string {
	i := strings.Index(script, marker)
	if i < 0 {
		return ""
	}
	rest := script[i+len(marker):]
	eq := strings.IndexByte(rest, '=')
	if eq < 0 || strings.TrimSpace(rest[:eq]) != "" {
		return ""
	}
	rest = rest[eq+1:]
	start := strings.IndexByte(rest, '{')
	if start < 0 || strings.TrimSpace(rest[:start]) != "" {
		return ""
	}
	return balancedObject(rest[start:])
}

// balancedObject returns the prefix of s that forms one brace-balanced
// object, skipping braces inside string literals.
func balancedObject(s string) string {
	depth := 0
	inString := false
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case quote:
				inString = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = true
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

// absoluteURL fixes protocol-relative links.
func absoluteURL(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

// firstString returns the first non-empty string among the gjson paths.
func firstString(r gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := strings.TrimSpace(r.Get(path).String()); v != "" {
			return v
		}
	}
	return ""
}

// findObject returns the first direct child of r for which match is true.
func findObject(r gjson.Result, match func(gjson.Result) bool) gjson.Result {
	var found gjson.Result
	r.ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() && match(v) {
			found = v
			return false
		}
		return true
	})
	return found
}
