// Package urlparse turns free-form share text into a canonical
// media.VideoReference: it finds the link, follows short-link redirects,
// classifies the platform, strips tracking parameters and derives a
// stable video ID.
package urlparse

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"vidparse/internal/httputil"
	"vidparse/internal/media"
)

// urlPattern matches the first http(s) link in share text. Share text from
// the apps wraps links in CJK punctuation, so matching stops at whitespace
// and at full-width characters.
var urlPattern = regexp.MustCompile(`https?://[A-Za-z0-9\-._~:/?#\[\]@!$&'()*+,;=%]+`)

// trailingPunct is trimmed from the end of an extracted link.
const trailingPunct = `.,;:!?)]'"`

// domainPlatforms maps registrable domains to platforms. Subdomains of any
// entry match as well.
var domainPlatforms = map[string]media.Platform{
	"douyin.com":        media.Douyin,
	"iesdouyin.com":     media.Douyin,
	"bilibili.com":      media.Bilibili,
	"b23.tv":            media.Bilibili,
	"xiaohongshu.com":   media.Xiaohongshu,
	"xhslink.com":       media.Xiaohongshu,
	"kuaishou.com":      media.Kuaishou,
	"gifshow.com":       media.Kuaishou,
	"chenzhongtech.com": media.Kuaishou,
	"haokan.baidu.com":  media.Haokan,
	"haokan.hao123.com": media.Haokan,
}

// ExtractURL returns the first link found in text.
func ExtractURL(text string) (string, bool) {
	m := urlPattern.FindString(text)
	if m == "" {
		return "", false
	}
	m = strings.TrimRight(m, trailingPunct)
	if _, err := url.Parse(m); err != nil {
		return "", false
	}
	return m, true
}

// ClassifyDomain looks the URL's host up in the static domain table.
func ClassifyDomain(rawURL string) media.Platform {
	return classifyHost(httputil.Host(rawURL))
}

func classifyHost(host string) media.Platform {
	if host == "" {
		return media.Unknown
	}
	for h := host; h != ""; {
		if p, ok := domainPlatforms[h]; ok {
			return p
		}
		i := strings.IndexByte(h, '.')
		if i < 0 {
			break
		}
		h = h[i+1:]
	}
	return media.Unknown
}

// ResolveRedirect follows the redirect chain of rawURL and returns the
// final landing URL. Any failure returns rawURL unchanged.
func ResolveRedirect(ctx context.Context, client *http.Client, rawURL string) string {
	resp, err := httputil.Get(ctx, client, rawURL, "")
	if err != nil {
		return rawURL
	}
	defer resp.Body.Close()
	// Drain a little so the connection can be reused; the body is not needed.
	io.CopyN(io.Discard, resp.Body, 4096)

	if resp.Request == nil || resp.Request.URL == nil {
		return rawURL
	}
	return resp.Request.URL.String()
}

// keepParams lists, per platform, the query parameters an extractor needs.
// Everything else is tracking noise.
var keepParams = map[media.Platform][]string{
	media.Xiaohongshu: {"xsec_token", "xsec_source"},
	media.Haokan:      {"vid"},
	media.Douyin:      {"modal_id"},
	media.Bilibili:    {"p"},
	media.Kuaishou:    nil,
}

// Canonicalize strips platform-specific tracking parameters while keeping
// the parameters extraction depends on.
func Canonicalize(rawURL string, platform media.Platform) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}

	keep, known := keepParams[platform]
	if !known {
		return rawURL
	}

	q := u.Query()
	kept := url.Values{}
	for _, k := range keep {
		if v := q.Get(k); v != "" {
			kept.Set(k, v)
		}
	}
	// Douyin only needs modal_id when the path does not already carry the id.
	if platform == media.Douyin && douyinPathID.MatchString(u.Path) {
		kept.Del("modal_id")
	}

	u.RawQuery = kept.Encode()
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

var (
	douyinPathID    = regexp.MustCompile(`/(?:video|note|share/video|share/note|share/slides)/(\d+)`)
	bilibiliBVID    = regexp.MustCompile(`BV[0-9A-Za-z]{10}`)
	bilibiliAVID    = regexp.MustCompile(`(?i)/av(\d+)`)
	xiaohongshuID   = regexp.MustCompile(`/(?:explore|discovery/item|item)/([0-9a-fA-F]{24})`)
	kuaishouPathID  = regexp.MustCompile(`/(?:short-video|fw/photo|photo)/([0-9A-Za-z_-]+)`)
	nonIDCharacters = regexp.MustCompile(`[^0-9A-Za-z_-]`)
)

// DeriveVideoID extracts the platform's native content identifier. When no
// pattern matches, a hash of the URL is used so the result is still stable
// and filename-safe.
func DeriveVideoID(rawURL string, platform media.Platform) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return hashID(rawURL)
	}

	var id string
	switch platform {
	case media.Douyin:
		if m := douyinPathID.FindStringSubmatch(u.Path); m != nil {
			id = m[1]
		} else {
			id = u.Query().Get("modal_id")
		}
	case media.Bilibili:
		if m := bilibiliBVID.FindString(u.Path); m != "" {
			id = m
		} else if m := bilibiliAVID.FindStringSubmatch(u.Path); m != nil {
			id = "av" + m[1]
		}
		if id != "" {
			if p := u.Query().Get("p"); p != "" && p != "1" {
				id += "_p" + p
			}
		}
	case media.Xiaohongshu:
		if m := xiaohongshuID.FindStringSubmatch(u.Path); m != nil {
			id = strings.ToLower(m[1])
		}
	case media.Kuaishou:
		if m := kuaishouPathID.FindStringSubmatch(u.Path); m != nil {
			id = m[1]
		}
	case media.Haokan:
		id = u.Query().Get("vid")
	}

	id = nonIDCharacters.ReplaceAllString(id, "")
	if id == "" {
		return hashID(rawURL)
	}
	return id
}

func hashID(s string) string {
	sum := sha1.Sum([]byte(s))
	return "u_" + hex.EncodeToString(sum[:])[:16]
}

// ToHTTPS rewrites an http:// URL to https://. Secure, empty and malformed
// URLs are returned unchanged.
func ToHTTPS(rawURL string) string {
	if !strings.HasPrefix(strings.ToLower(rawURL), "http://") {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	u.Scheme = "https"
	return u.String()
}

// Parser runs the full text → VideoReference pipeline.
type Parser struct {
	client *http.Client
	logger *zap.Logger
}

// NewParser creates a Parser. client should carry the short metadata
// timeout; redirect resolution uses it directly.
func NewParser(client *http.Client, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{client: client, logger: logger}
}

// Parse extracts, resolves and classifies the link in text.
func (p *Parser) Parse(ctx context.Context, text string) (media.VideoReference, error) {
	extracted, ok := ExtractURL(text)
	if !ok {
		return media.VideoReference{}, media.NewError(media.KindNoURLFound, "未找到有效的视频链接", nil)
	}
	p.logger.Debug("extracted url", zap.String("url", extracted))

	landing := ResolveRedirect(ctx, p.client, extracted)
	if landing != extracted {
		p.logger.Debug("resolved redirect", zap.String("url", landing))
	}

	platform := ClassifyDomain(landing)
	if platform == media.Unknown {
		// Some short links land on an app-download page on another domain;
		// the original host is then the better signal.
		platform = ClassifyDomain(extracted)
		if platform != media.Unknown {
			landing = extracted
		}
	}
	if platform == media.Unknown {
		return media.VideoReference{}, media.NewError(media.KindUnsupportedPlatform, "该链接尚未支持提取", nil)
	}

	canonical := Canonicalize(landing, platform)
	ref := media.VideoReference{
		Platform:     platform,
		CanonicalURL: canonical,
		VideoID:      DeriveVideoID(canonical, platform),
	}
	p.logger.Debug("canonicalized",
		zap.Stringer("platform", platform),
		zap.String("video_id", ref.VideoID),
		zap.String("url", canonical),
	)
	return ref, nil
}
