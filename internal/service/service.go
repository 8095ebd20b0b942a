// Package service implements the two operations the front ends expose:
// Parse turns share text into media URLs and Materialize turns a media URL
// into one the client can fetch from this server.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"vidparse/internal/download"
	"vidparse/internal/httputil"
	"vidparse/internal/media"
	"vidparse/internal/urlparse"
)

// Parser canonicalizes share text.
type Parser interface {
	Parse(ctx context.Context, text string) (media.VideoReference, error)
}

// Resolver extracts media for a canonical page URL.
type Resolver interface {
	ResolveDefault(ctx context.Context, platform media.Platform, pageURL string) media.ResolvedMedia
}

// Downloader streams one file.
type Downloader interface {
	Download(ctx context.Context, job download.Job, progress download.ProgressFunc) (int64, error)
}

// Merger combines a video and an audio track.
type Merger interface {
	Merge(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// Recorder stores parse history.
type Recorder interface {
	Save(ctx context.Context, e media.HistoryEntry) error
}

// Options configures a Service.
type Options struct {
	VideosDir       string
	PublicBaseURL   string
	ServableDomains []string
	History         Recorder // optional
	Logger          *zap.Logger
}

// Service wires the pipeline stages together.
type Service struct {
	parser     Parser
	resolver   Resolver
	downloader Downloader
	merger     Merger
	history    Recorder

	videosDir string
	baseURL   string
	servable  []string

	inflight singleflight.Group
	logger   *zap.Logger
}

// New creates a Service.
func New(parser Parser, resolver Resolver, downloader Downloader, merger Merger, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	servable := make([]string, 0, len(opts.ServableDomains))
	for _, d := range opts.ServableDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			servable = append(servable, d)
		}
	}
	return &Service{
		parser:     parser,
		resolver:   resolver,
		downloader: downloader,
		merger:     merger,
		history:    opts.History,
		videosDir:  opts.VideosDir,
		baseURL:    strings.TrimRight(opts.PublicBaseURL, "/"),
		servable:   servable,
		logger:     opts.Logger,
	}
}

// Parse resolves share text to media URLs. client identifies the caller in
// logs and history.
func (s *Service) Parse(ctx context.Context, text, client string) (media.ParseResult, error) {
	log := s.logger.With(zap.String("client", client))

	if strings.TrimSpace(text) == "" {
		return media.ParseResult{}, media.NewError(media.KindInvalidInput, "请输入视频链接", nil)
	}

	ref, err := s.parser.Parse(ctx, text)
	if err != nil {
		log.Info("parse rejected", zap.String("kind", string(media.KindOf(err))))
		return media.ParseResult{}, err
	}
	log = log.With(zap.Stringer("platform", ref.Platform), zap.String("video_id", ref.VideoID))

	m := s.resolver.ResolveDefault(ctx, ref.Platform, ref.CanonicalURL)
	if !m.Found() {
		log.Warn("extraction failed", zap.String("url", ref.CanonicalURL))
		return media.ParseResult{}, media.NewError(media.KindExtractionFailed, "视频解析失败，请检查链接是否有效",
			fmt.Errorf("no video url for %s", ref.CanonicalURL))
	}

	result := media.ParseResult{
		VideoID:  ref.VideoID,
		Platform: ref.Platform.DisplayName(),
		Title:    m.Title,
		VideoURL: urlparse.ToHTTPS(m.VideoURL),
		CoverURL: urlparse.ToHTTPS(m.CoverURL),
		AudioURL: urlparse.ToHTTPS(m.AudioURL),
		PageURL:  ref.CanonicalURL,
	}

	if s.history != nil {
		err := s.history.Save(ctx, media.HistoryEntry{
			VideoID:  result.VideoID,
			Platform: ref.Platform,
			Title:    result.Title,
			PageURL:  ref.CanonicalURL,
			VideoURL: result.VideoURL,
			Client:   client,
		})
		if err != nil {
			log.Warn("recording history", zap.Error(err))
		}
	}

	log.Info("parse succeeded")
	return result, nil
}

// MaterializeRequest is the input of Materialize. AudioURL and Platform are
// optional; Platform selects the Referer sent to the CDN.
type MaterializeRequest struct {
	VideoURL string `json:"video_url"`
	VideoID  string `json:"video_id"`
	AudioURL string `json:"audio_url,omitempty"`
	Platform string `json:"platform,omitempty"`
	Client   string `json:"-"`
}

// MaterializeResult is the URL the client should fetch. Fallback is set
// when the server could not store the video and DownloadURL is the
// original upstream link.
type MaterializeResult struct {
	DownloadURL string `json:"download_url"`
	Message     string `json:"-"`
	Fallback    bool   `json:"-"`
}

const fallbackMessage = "服务器下载失败，返回原始链接"

// Materialize makes req's video fetchable by the client. Links on servable
// domains are returned unchanged. Anything else is downloaded once per
// video ID into the videos directory and served from there; concurrent
// requests for the same ID share one download. A failed download falls
// back to the original link rather than failing the request.
func (s *Service) Materialize(ctx context.Context, req MaterializeRequest) (MaterializeResult, error) {
	if err := httputil.ValidateURL(req.VideoURL); err != nil {
		return MaterializeResult{}, media.NewError(media.KindInvalidInput, "无效的视频链接", err)
	}
	if req.AudioURL != "" {
		if err := httputil.ValidateURL(req.AudioURL); err != nil {
			return MaterializeResult{}, media.NewError(media.KindInvalidInput, "无效的音频链接", err)
		}
	}

	log := s.logger.With(zap.String("client", req.Client), zap.String("video_id", req.VideoID))

	if s.Servable(req.VideoURL) {
		log.Debug("servable domain, returning link directly")
		return MaterializeResult{DownloadURL: req.VideoURL}, nil
	}

	if err := httputil.ValidateID(req.VideoID); err != nil {
		return MaterializeResult{}, media.NewError(media.KindInvalidInput, "无效的视频ID", err)
	}

	filename := req.VideoID + ".mp4"
	target := filepath.Join(s.videosDir, filename)

	// The shared download outlives any single waiter; the downloader's
	// stream timeout still bounds it.
	shared := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(req.VideoID, func() (interface{}, error) {
		return nil, s.store(shared, req, target, log)
	})

	select {
	case <-ctx.Done():
		return MaterializeResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			log.Error("server-side download failed", zap.Error(res.Err))
			return MaterializeResult{DownloadURL: req.VideoURL, Message: fallbackMessage, Fallback: true}, nil
		}
	}

	return MaterializeResult{DownloadURL: httputil.JoinURL(s.baseURL, "static", "videos", filename)}, nil
}

// store puts a complete video at target, downloading and merging as
// needed. An existing target is reused.
func (s *Service) store(ctx context.Context, req MaterializeRequest, target string, log *zap.Logger) error {
	if download.Exists(target) {
		log.Debug("video already stored")
		return nil
	}

	referer := media.ParsePlatform(req.Platform).Referer("")
	if req.AudioURL == "" {
		log.Info("starting server-side download", zap.String("url", req.VideoURL))
		_, err := s.downloader.Download(ctx, download.Job{URL: req.VideoURL, Target: target, Referer: referer}, nil)
		return err
	}

	log.Info("starting server-side download with separate audio", zap.String("url", req.VideoURL))
	return s.fetchTracks(ctx, tracks{
		video:   req.VideoURL,
		audio:   req.AudioURL,
		referer: referer,
		prefix:  filepath.Join(s.videosDir, req.VideoID),
		output:  target,
	}, nil)
}

// tracks describes a separated video/audio download and its merge.
type tracks struct {
	video, audio string
	referer      string
	prefix       string // temp tracks are prefix+"_video.m4s" and prefix+"_audio.m4s"
	output       string
}

// fetchTracks downloads both tracks and merges them into t.output. Tracks
// already on disk from an earlier attempt are reused.
func (s *Service) fetchTracks(ctx context.Context, t tracks, progress func(label string) download.ProgressFunc) error {
	videoPath := t.prefix + "_video.m4s"
	audioPath := t.prefix + "_audio.m4s"

	for _, tr := range []struct{ label, url, path string }{
		{"video", t.video, videoPath},
		{"audio", t.audio, audioPath},
	} {
		if download.Exists(tr.path) {
			continue
		}
		var p download.ProgressFunc
		if progress != nil {
			p = progress(tr.label)
		}
		if _, err := s.downloader.Download(ctx, download.Job{URL: tr.url, Target: tr.path, Referer: t.referer}, p); err != nil {
			return fmt.Errorf("downloading %s track: %w", tr.label, err)
		}
	}

	return s.merger.Merge(ctx, videoPath, audioPath, t.output)
}

// Servable reports whether rawURL's host is on the servable list, either
// exactly or as a subdomain.
func (s *Service) Servable(rawURL string) bool {
	host := httputil.Host(rawURL)
	if host == "" {
		return false
	}
	for _, d := range s.servable {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
