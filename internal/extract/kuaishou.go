package extract

import (
	"context"
	"net/http"
	"sync"

	"github.com/tidwall/gjson"

	"vidparse/internal/media"
)

// Kuaishou reads the Apollo cache embedded in short-video pages.
type Kuaishou struct {
	page *page

	once  sync.Once
	photo gjson.Result
}

// NewKuaishou creates an extractor for a Kuaishou short-video page.
func NewKuaishou(client *http.Client, pageURL string) *Kuaishou {
	return &Kuaishou{page: newPage(client, pageURL, media.Kuaishou.Referer(pageURL))}
}

// videoPhoto finds the cache entry describing the video; its key embeds the
// photo ID so it is located by shape instead of by name.
func (k *Kuaishou) videoPhoto(ctx context.Context) gjson.Result {
	k.once.Do(func() {
		cache := k.page.state(ctx, "window.__APOLLO_STATE__").Get("defaultClient")
		k.photo = findObject(cache, func(v gjson.Result) bool {
			return v.Get("photoUrl").String() != ""
		})
	})
	return k.photo
}

func (k *Kuaishou) Title(ctx context.Context) string {
	if t := firstString(k.videoPhoto(ctx), "caption"); t != "" {
		return t
	}
	return k.page.meta(ctx, "og:title", "description")
}

func (k *Kuaishou) VideoURL(ctx context.Context) string {
	return absoluteURL(firstString(k.videoPhoto(ctx), "photoUrl", "photoH265Url"))
}

func (k *Kuaishou) CoverURL(ctx context.Context) string {
	if c := firstString(k.videoPhoto(ctx), "coverUrl", "webpCoverUrl"); c != "" {
		return absoluteURL(c)
	}
	return absoluteURL(k.page.meta(ctx, "og:image"))
}
