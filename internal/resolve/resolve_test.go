package resolve

import (
	"context"
	"errors"
	"testing"

	"vidparse/internal/extract"
	"vidparse/internal/media"
)

type stubExtractor struct {
	video string
}

func (s stubExtractor) Title(context.Context) string    { return "title" }
func (s stubExtractor) VideoURL(context.Context) string { return s.video }
func (s stubExtractor) CoverURL(context.Context) string { return "https://cdn.example.com/c.jpg" }

// countingFactory returns empty extractors until the succeedOn-th
// construction. succeedOn of 0 never succeeds.
func countingFactory(succeedOn int, calls *int) extract.Factory {
	return func(media.Platform, string) (extract.Extractor, error) {
		*calls++
		if succeedOn > 0 && *calls >= succeedOn {
			return stubExtractor{video: "https://cdn.example.com/v.mp4"}, nil
		}
		return stubExtractor{}, nil
	}
}

func TestResolveSucceedsOnThirdAttempt(t *testing.T) {
	calls := 0
	r := New(countingFactory(3, &calls))

	got := r.Resolve(context.Background(), media.Xiaohongshu, "https://www.xiaohongshu.com/explore/x", 5)
	if calls != 3 {
		t.Errorf("constructions = %d, want 3", calls)
	}
	if got.VideoURL != "https://cdn.example.com/v.mp4" {
		t.Errorf("VideoURL = %q", got.VideoURL)
	}
	if got.Title != "title" {
		t.Errorf("Title = %q", got.Title)
	}
}

func TestResolveExhaustsAttempts(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		calls := 0
		r := New(countingFactory(0, &calls))
		got := r.Resolve(context.Background(), media.Douyin, "https://www.douyin.com/video/1", n)
		if calls != n {
			t.Errorf("maxAttempts=%d: constructions = %d", n, calls)
		}
		if got.Found() {
			t.Errorf("maxAttempts=%d: got video %q, want empty", n, got.VideoURL)
		}
	}
}

func TestResolveConstructionErrorStops(t *testing.T) {
	calls := 0
	r := New(func(media.Platform, string) (extract.Extractor, error) {
		calls++
		return nil, errors.New("bad url")
	})
	got := r.Resolve(context.Background(), media.Xiaohongshu, "::", 5)
	if calls != 1 {
		t.Errorf("constructions = %d, want 1", calls)
	}
	if got.Found() {
		t.Error("got a video from a failed construction")
	}
}

func TestAttempts(t *testing.T) {
	r := New(nil)
	if got := r.Attempts(media.Xiaohongshu); got != 5 {
		t.Errorf("Attempts(xiaohongshu) = %d, want 5", got)
	}
	if got := r.Attempts(media.Douyin); got != 1 {
		t.Errorf("Attempts(douyin) = %d, want 1", got)
	}

	r = New(nil, WithAttempts(map[media.Platform]int{media.Kuaishou: 3, media.Haokan: 0}))
	if got := r.Attempts(media.Kuaishou); got != 3 {
		t.Errorf("Attempts(kuaishou) = %d, want 3", got)
	}
	if got := r.Attempts(media.Haokan); got != 1 {
		t.Errorf("Attempts(haokan) = %d, want 1", got)
	}
	if got := r.Attempts(media.Xiaohongshu); got != 1 {
		t.Errorf("Attempts(xiaohongshu) with override = %d, want 1", got)
	}
}

func TestResolveDefaultUsesConfiguredAttempts(t *testing.T) {
	calls := 0
	r := New(countingFactory(0, &calls), WithAttempts(map[media.Platform]int{media.Bilibili: 4}))
	r.ResolveDefault(context.Background(), media.Bilibili, "https://www.bilibili.com/video/BV1TaqYBcEJc")
	if calls != 4 {
		t.Errorf("constructions = %d, want 4", calls)
	}
}
