// Package media defines shared types for the vidparse application.
package media

import "strings"

// Platform identifies a supported video-sharing service.
type Platform int

const (
	Unknown Platform = iota
	Douyin
	Bilibili
	Xiaohongshu
	Kuaishou
	Haokan
)

// Platforms lists every supported platform, in display order.
var Platforms = []Platform{Douyin, Bilibili, Xiaohongshu, Kuaishou, Haokan}

func (p Platform) String() string {
	switch p {
	case Douyin:
		return "douyin"
	case Bilibili:
		return "bilibili"
	case Xiaohongshu:
		return "xiaohongshu"
	case Kuaishou:
		return "kuaishou"
	case Haokan:
		return "haokan"
	default:
		return "unknown"
	}
}

// DisplayName returns the name clients show to users.
func (p Platform) DisplayName() string {
	switch p {
	case Douyin:
		return "抖音"
	case Bilibili:
		return "哔哩哔哩"
	case Xiaohongshu:
		return "小红书"
	case Kuaishou:
		return "快手"
	case Haokan:
		return "好看视频"
	default:
		return "未知平台"
	}
}

// Referer returns the Referer header the platform's CDN expects.
// Bilibili checks against the page itself, so pageURL is used there.
func (p Platform) Referer(pageURL string) string {
	switch p {
	case Douyin:
		return "https://www.douyin.com/"
	case Bilibili:
		if pageURL != "" {
			return pageURL
		}
		return "https://www.bilibili.com/"
	case Xiaohongshu:
		return "https://www.xiaohongshu.com/"
	case Kuaishou:
		return "https://www.kuaishou.com/"
	case Haokan:
		return "https://haokan.baidu.com/"
	default:
		return ""
	}
}

// ParsePlatform accepts either the machine name or the display name.
func ParsePlatform(s string) Platform {
	s = strings.TrimSpace(s)
	for _, p := range Platforms {
		if strings.EqualFold(s, p.String()) || s == p.DisplayName() {
			return p
		}
	}
	return Unknown
}

// VideoReference is a share link after canonicalization.
type VideoReference struct {
	Platform     Platform
	CanonicalURL string // post-redirect, tracking parameters removed
	VideoID      string // platform-stable ID, used as cache key and filename
}

// ResolvedMedia is the output of a single extraction. Empty strings mean
// the field could not be found; an empty VideoURL means extraction failed.
type ResolvedMedia struct {
	Title    string
	CoverURL string
	VideoURL string
	AudioURL string // only for platforms with separated tracks
}

// Found reports whether extraction produced a playable video URL.
func (m ResolvedMedia) Found() bool {
	return m.VideoURL != ""
}

// ParseResult is the record returned by the parse operation.
type ParseResult struct {
	VideoID  string `json:"video_id"`
	Platform string `json:"platform"`
	Title    string `json:"title"`
	VideoURL string `json:"video_url"`
	CoverURL string `json:"cover_url"`
	AudioURL string `json:"audio_url,omitempty"`
	PageURL  string `json:"-"`
}

// Found reports whether the result carries a video URL.
func (r ParseResult) Found() bool {
	return r.VideoURL != ""
}

// HistoryEntry is a stored record of a successful parse.
type HistoryEntry struct {
	VideoID  string
	Platform Platform
	Title    string
	PageURL  string
	VideoURL string
	Client     string
	ParsedAt   int64 // unix seconds
	ParseCount int   // times this client parsed the video
}
