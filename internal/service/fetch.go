package service

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"vidparse/internal/download"
	"vidparse/internal/httputil"
	"vidparse/internal/media"
)

// maxTitleRunes bounds the title part of local filenames.
const maxTitleRunes = 50

// FetchResult lists the files Fetch produced.
type FetchResult struct {
	VideoPath string
	CoverPath string // empty if the cover could not be saved
}

// Fetch saves a parsed video into dir for a local user: the cover, then
// the video, downloading and merging separate tracks when the result has
// an audio URL. progress, if set, is asked for a callback per file.
func (s *Service) Fetch(ctx context.Context, r media.ParseResult, dir string, progress func(label string) download.ProgressFunc) (FetchResult, error) {
	if !r.Found() {
		return FetchResult{}, media.NewError(media.KindInvalidInput, "没有可下载的视频", nil)
	}

	platform := media.ParsePlatform(r.Platform)
	referer := platform.Referer(r.PageURL)
	base := localName(r)
	log := s.logger.With(zap.String("video_id", r.VideoID), zap.String("dir", dir))

	var out FetchResult

	if r.CoverURL != "" {
		cover, err := httputil.SafeDownloadPath(dir, base+"_cover.jpg")
		if err == nil {
			var p download.ProgressFunc
			if progress != nil {
				p = progress("cover")
			}
			if _, err = s.downloader.Download(ctx, download.Job{URL: r.CoverURL, Target: cover, Referer: referer}, p); err == nil {
				out.CoverPath = cover
			}
		}
		if err != nil {
			log.Warn("saving cover", zap.Error(err))
		}
	}

	video, err := httputil.SafeDownloadPath(dir, base+".mp4")
	if err != nil {
		return out, media.NewError(media.KindStorage, "", fmt.Errorf("invalid output path: %w", err))
	}

	if r.AudioURL == "" {
		var p download.ProgressFunc
		if progress != nil {
			p = progress("video")
		}
		if _, err := s.downloader.Download(ctx, download.Job{URL: r.VideoURL, Target: video, Referer: referer}, p); err != nil {
			return out, err
		}
		out.VideoPath = video
		return out, nil
	}

	err = s.fetchTracks(ctx, tracks{
		video:   r.VideoURL,
		audio:   r.AudioURL,
		referer: referer,
		prefix:  filepath.Join(filepath.Dir(video), base),
		output:  video,
	}, progress)
	if err != nil {
		return out, err
	}
	out.VideoPath = video
	return out, nil
}

// localName builds a filesystem-safe base name from the title, falling
// back to the video ID.
func localName(r media.ParseResult) string {
	if r.Title == "" {
		return r.VideoID
	}
	name := httputil.SanitizeFilename(httputil.TruncateRunes(r.Title, maxTitleRunes))
	if name == "untitled" {
		return r.VideoID
	}
	return name
}
