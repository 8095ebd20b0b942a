package extract

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"

	"vidparse/internal/media"
)

// Haokan reads the preloaded state of haokan.baidu.com video pages.
type Haokan struct {
	page *page
}

// NewHaokan creates an extractor for a Haokan video page.
func NewHaokan(client *http.Client, pageURL string) *Haokan {
	return &Haokan{page: newPage(client, pageURL, media.Haokan.Referer(pageURL))}
}

func (h *Haokan) videoMeta(ctx context.Context) gjson.Result {
	return h.page.state(ctx, "window.__PRELOADED_STATE__").Get("curVideoMeta")
}

func (h *Haokan) Title(ctx context.Context) string {
	if t := firstString(h.videoMeta(ctx), "title"); t != "" {
		return t
	}
	return h.page.meta(ctx, "og:title")
}

// VideoURL prefers the highest clarity listed, which comes last.
func (h *Haokan) VideoURL(ctx context.Context) string {
	meta := h.videoMeta(ctx)
	clarities := meta.Get("clarityUrl").Array()
	for i := len(clarities) - 1; i >= 0; i-- {
		if u := clarities[i].Get("url").String(); u != "" {
			return absoluteURL(u)
		}
	}
	return absoluteURL(firstString(meta, "playurl"))
}

func (h *Haokan) CoverURL(ctx context.Context) string {
	if c := firstString(h.videoMeta(ctx), "poster"); c != "" {
		return absoluteURL(c)
	}
	return absoluteURL(h.page.meta(ctx, "og:image"))
}
