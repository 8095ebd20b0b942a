// Package extract resolves a canonical page URL into title, cover and
// stream URLs by scraping each platform's embedded page state.
//
// Extractors never fail on missing content: an accessor that cannot find
// its value returns "". Only construction with a malformed URL is an error.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"vidparse/internal/httputil"
	"vidparse/internal/media"
)

// ErrUnsupportedPlatform is returned by a Factory for a platform with no
// extractor. Callers classify the platform first, so this is a bug.
var ErrUnsupportedPlatform = errors.New("no extractor for platform")

// Extractor resolves one page. The page is fetched at most once, on the
// first accessor call.
type Extractor interface {
	Title(ctx context.Context) string
	VideoURL(ctx context.Context) string
	CoverURL(ctx context.Context) string
}

// AudioSource is implemented by extractors for platforms that serve the
// audio track separately.
type AudioSource interface {
	AudioURL(ctx context.Context) string
}

// Factory builds a fresh extractor for a page.
type Factory func(platform media.Platform, pageURL string) (Extractor, error)

// NewFactory returns the Factory mapping every supported platform to its
// extractor. All extractors share client.
func NewFactory(client *http.Client) Factory {
	return func(platform media.Platform, pageURL string) (Extractor, error) {
		if err := httputil.ValidateURL(pageURL); err != nil {
			return nil, fmt.Errorf("invalid page URL: %w", err)
		}

		switch platform {
		case media.Douyin:
			return NewDouyin(client, pageURL), nil
		case media.Bilibili:
			return NewBilibili(client, pageURL), nil
		case media.Xiaohongshu:
			return NewXiaohongshu(client, pageURL), nil
		case media.Kuaishou:
			return NewKuaishou(client, pageURL), nil
		case media.Haokan:
			return NewHaokan(client, pageURL), nil
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
		}
	}
}

// Resolve runs every accessor of e once and collects the result.
func Resolve(ctx context.Context, e Extractor) media.ResolvedMedia {
	m := media.ResolvedMedia{
		VideoURL: e.VideoURL(ctx),
		Title:    e.Title(ctx),
		CoverURL: e.CoverURL(ctx),
	}
	if a, ok := e.(AudioSource); ok {
		m.AudioURL = a.AudioURL(ctx)
	}
	return m
}
