package extract

import (
	"context"
	"net/http"
	"sync"

	"github.com/tidwall/gjson"

	"vidparse/internal/media"
)

// xhsVideoCDN serves original video keys.
const xhsVideoCDN = "http://sns-video-bd.xhscdn.com/"

// Xiaohongshu reads the note detail from the page's initial state. The
// page intermittently omits the note, which is why the platform is
// configured with several extraction attempts.
type Xiaohongshu struct {
	page *page

	once sync.Once
	note gjson.Result
}

// NewXiaohongshu creates an extractor for a Xiaohongshu note. pageURL must
// keep its xsec_token parameter.
func NewXiaohongshu(client *http.Client, pageURL string) *Xiaohongshu {
	return &Xiaohongshu{page: newPage(client, pageURL, media.Xiaohongshu.Referer(pageURL))}
}

func (x *Xiaohongshu) noteDetail(ctx context.Context) gjson.Result {
	x.once.Do(func() {
		notes := x.page.state(ctx, "window.__INITIAL_STATE__").Get("note")
		id := notes.Get("firstNoteId").String()
		if id == "" {
			return
		}
		x.note = notes.Get("noteDetailMap." + gjson.Escape(id) + ".note")
	})
	return x.note
}

// Title joins the note title and its description.
func (x *Xiaohongshu) Title(ctx context.Context) string {
	n := x.noteDetail(ctx)
	if t := n.Get("title").String() + n.Get("desc").String(); t != "" {
		return t
	}
	return x.page.meta(ctx, "og:title")
}

func (x *Xiaohongshu) VideoURL(ctx context.Context) string {
	n := x.noteDetail(ctx)
	if key := n.Get("video.consumer.originVideoKey").String(); key != "" {
		return xhsVideoCDN + key
	}
	return absoluteURL(firstString(n,
		"video.media.stream.h264.0.masterUrl",
		"video.media.stream.h265.0.masterUrl",
	))
}

func (x *Xiaohongshu) CoverURL(ctx context.Context) string {
	if c := firstString(x.noteDetail(ctx), "imageList.0.urlDefault", "imageList.0.url"); c != "" {
		return absoluteURL(c)
	}
	return absoluteURL(x.page.meta(ctx, "og:image"))
}
