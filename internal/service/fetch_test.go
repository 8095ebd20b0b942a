package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"vidparse/internal/download"
	"vidparse/internal/media"
)

func TestFetchSingleTrack(t *testing.T) {
	dl := newFakeDownloader()
	s, _ := newTestService(t, dl, &fakeMerger{})
	dir := t.TempDir()

	labels := map[string]bool{}
	res, err := s.Fetch(context.Background(), media.ParseResult{
		VideoID:  "7580598241298069157",
		Platform: "抖音",
		Title:    "山里的清晨/日出",
		VideoURL: "https://aweme.snssdk.com/aweme/v1/play/?video_id=abc",
		CoverURL: "https://p3.douyinpic.com/cover.jpeg",
	}, dir, func(label string) download.ProgressFunc {
		labels[label] = true
		return func(int64, int64) {}
	})
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if res.VideoPath != filepath.Join(dir, "日出.mp4") {
		t.Errorf("VideoPath = %q", res.VideoPath)
	}
	if res.CoverPath != filepath.Join(dir, "日出_cover.jpg") {
		t.Errorf("CoverPath = %q", res.CoverPath)
	}
	for _, p := range []string{res.VideoPath, res.CoverPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s missing: %v", p, err)
		}
	}
	if !labels["cover"] || !labels["video"] {
		t.Errorf("progress labels = %v", labels)
	}
	for _, r := range dl.referers {
		if r != "https://www.douyin.com/" {
			t.Errorf("referer = %q", r)
		}
	}
}

func TestFetchSeparateTracks(t *testing.T) {
	dl := newFakeDownloader()
	mg := &fakeMerger{}
	s, _ := newTestService(t, dl, mg)
	dir := t.TempDir()

	res, err := s.Fetch(context.Background(), media.ParseResult{
		VideoID:  "BV1TaqYBcEJc",
		Platform: "哔哩哔哩",
		VideoURL: "https://upos.bilivideo.com/v.m4s",
		AudioURL: "https://upos.bilivideo.com/a.m4s",
		PageURL:  "https://www.bilibili.com/video/BV1TaqYBcEJc",
	}, dir, nil)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if res.VideoPath != filepath.Join(dir, "BV1TaqYBcEJc.mp4") {
		t.Errorf("VideoPath = %q", res.VideoPath)
	}
	if res.CoverPath != "" {
		t.Errorf("CoverPath = %q, want empty without cover URL", res.CoverPath)
	}
	if mg.calls != 1 {
		t.Errorf("merges = %d, want 1", mg.calls)
	}
	for _, r := range dl.referers {
		if r != "https://www.bilibili.com/video/BV1TaqYBcEJc" {
			t.Errorf("referer = %q, want page URL", r)
		}
	}
}

func TestFetchCoverFailureIsNotFatal(t *testing.T) {
	dl := newFakeDownloader()
	dl.fail["https://cdn.example.com/c.jpg"] = media.NewError(media.KindNetwork, "", nil)
	s, _ := newTestService(t, dl, &fakeMerger{})

	res, err := s.Fetch(context.Background(), media.ParseResult{
		VideoID:  "abc",
		Platform: "kuaishou",
		VideoURL: "https://cdn.example.com/v.mp4",
		CoverURL: "https://cdn.example.com/c.jpg",
	}, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if res.CoverPath != "" || res.VideoPath == "" {
		t.Errorf("Fetch() = %+v", res)
	}
}

func TestFetchWithoutVideo(t *testing.T) {
	s, _ := newTestService(t, newFakeDownloader(), &fakeMerger{})
	_, err := s.Fetch(context.Background(), media.ParseResult{VideoID: "x"}, t.TempDir(), nil)
	if media.KindOf(err) != media.KindInvalidInput {
		t.Errorf("kind = %v, want invalid_input", media.KindOf(err))
	}
}
