package extract

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"vidparse/internal/media"
	"vidparse/internal/urlparse"
)

// Douyin reads the router data embedded in iesdouyin share pages.
type Douyin struct {
	page *page

	once sync.Once
	item gjson.Result
}

// NewDouyin creates an extractor for a Douyin video or note page.
func NewDouyin(client *http.Client, pageURL string) *Douyin {
	p := newPage(client, douyinSharePage(pageURL), media.Douyin.Referer(pageURL))
	p.userAgent = mobileUserAgent
	return &Douyin{page: p}
}

// douyinSharePage maps www.douyin.com links to the share page, which is the
// only one serving the item JSON without a signed API call.
func douyinSharePage(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	host := strings.ToLower(u.Hostname())
	if !strings.HasSuffix(host, "douyin.com") || strings.HasSuffix(host, "iesdouyin.com") {
		return pageURL
	}
	id := urlparse.DeriveVideoID(pageURL, media.Douyin)
	if strings.HasPrefix(id, "u_") {
		return pageURL
	}
	kind := "video"
	if strings.Contains(u.Path, "/note/") {
		kind = "note"
	}
	return "https://www.iesdouyin.com/share/" + kind + "/" + id + "/"
}

func (d *Douyin) videoItem(ctx context.Context) gjson.Result {
	d.once.Do(func() {
		loader := d.page.state(ctx, "window._ROUTER_DATA").Get("loaderData")
		res := findObject(loader, func(v gjson.Result) bool {
			return v.Get("videoInfoRes").Exists()
		})
		d.item = res.Get("videoInfoRes.item_list.0")
	})
	return d.item
}

func (d *Douyin) Title(ctx context.Context) string {
	if t := firstString(d.videoItem(ctx), "desc"); t != "" {
		return t
	}
	return d.page.meta(ctx, "og:title", "description")
}

// VideoURL returns the watermark-free play address.
func (d *Douyin) VideoURL(ctx context.Context) string {
	v := firstString(d.videoItem(ctx), "video.play_addr.url_list.0", "video.download_addr.url_list.0")
	if v == "" {
		return ""
	}
	return strings.Replace(absoluteURL(v), "/playwm/", "/play/", 1)
}

func (d *Douyin) CoverURL(ctx context.Context) string {
	if c := firstString(d.videoItem(ctx), "video.cover.url_list.0", "video.origin_cover.url_list.0"); c != "" {
		return absoluteURL(c)
	}
	return absoluteURL(d.page.meta(ctx, "og:image"))
}
