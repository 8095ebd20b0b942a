package extract

import (
	"context"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"vidparse/internal/media"
)

// bilibiliTitleSuffix is appended to every page <title>.
const bilibiliTitleSuffix = "_哔哩哔哩_bilibili"

// Bilibili reads the DASH play info embedded in video pages. DASH streams
// carry video and audio separately, so Bilibili implements AudioSource.
type Bilibili struct {
	page *page
}

// NewBilibili creates an extractor for a Bilibili video page.
func NewBilibili(client *http.Client, pageURL string) *Bilibili {
	return &Bilibili{page: newPage(client, pageURL, media.Bilibili.Referer(pageURL))}
}

func (b *Bilibili) playInfo(ctx context.Context) gjson.Result {
	return b.page.state(ctx, "window.__playinfo__").Get("data")
}

func (b *Bilibili) videoData(ctx context.Context) gjson.Result {
	return b.page.state(ctx, "window.__INITIAL_STATE__").Get("videoData")
}

func (b *Bilibili) Title(ctx context.Context) string {
	if t := firstString(b.videoData(ctx), "title"); t != "" {
		return t
	}
	if t := b.page.meta(ctx, "og:title"); t != "" {
		return strings.TrimSuffix(t, bilibiliTitleSuffix)
	}
	return strings.TrimSuffix(b.page.title(ctx), bilibiliTitleSuffix)
}

// VideoURL returns the highest-quality DASH video track, or the single
// progressive stream for pages that have no DASH data.
func (b *Bilibili) VideoURL(ctx context.Context) string {
	info := b.playInfo(ctx)
	return absoluteURL(firstString(info,
		"dash.video.0.baseUrl",
		"dash.video.0.base_url",
		"durl.0.url",
	))
}

// AudioURL returns the first DASH audio track.
func (b *Bilibili) AudioURL(ctx context.Context) string {
	return absoluteURL(firstString(b.playInfo(ctx),
		"dash.audio.0.baseUrl",
		"dash.audio.0.base_url",
	))
}

func (b *Bilibili) CoverURL(ctx context.Context) string {
	if c := firstString(b.videoData(ctx), "pic"); c != "" {
		return absoluteURL(c)
	}
	return absoluteURL(b.page.meta(ctx, "og:image", "image"))
}
