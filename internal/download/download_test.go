package download

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"vidparse/internal/media"
)

func newTestDownloader(attempts int) *Downloader {
	return New(Options{Attempts: attempts, Backoff: time.Millisecond, Timeout: 10 * time.Second})
}

func TestDownloadSuccess(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 2500)
	var gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		w.Write(payload)
	}))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "videos", "BV1TaqYBcEJc.mp4")
	var lastWritten, lastTotal int64
	calls := 0
	n, err := newTestDownloader(5).Download(context.Background(), Job{
		URL:     srv.URL + "/v.mp4",
		Target:  target,
		Referer: "https://www.bilibili.com/video/BV1TaqYBcEJc",
	}, func(written, total int64) {
		calls++
		lastWritten, lastTotal = written, total
	})
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("written = %d, want %d", n, len(payload))
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("reading target: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Error("target content differs from payload")
	}
	if _, err := os.Stat(target + partSuffix); !os.IsNotExist(err) {
		t.Error("partial file left behind")
	}
	if gotReferer != "https://www.bilibili.com/video/BV1TaqYBcEJc" {
		t.Errorf("Referer = %q", gotReferer)
	}
	if calls < len(payload)/chunkSize {
		t.Errorf("progress called %d times, want at least %d", calls, len(payload)/chunkSize)
	}
	if lastWritten != int64(len(payload)) || lastTotal != int64(len(payload)) {
		t.Errorf("last progress = (%d, %d)", lastWritten, lastTotal)
	}
	if !Exists(target) {
		t.Error("Exists() = false after download")
	}
}

func TestDownloadMidStreamFailureRemovesPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("response writer does not support hijacking")
			return
		}
		conn, buf, err := hj.Hijack()
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.Close()
		buf.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 100000\r\nContent-Type: video/mp4\r\n\r\n")
		buf.Write(bytes.Repeat([]byte{0xAB}, 20000))
		buf.Flush()
	}))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "7580598241298069157.mp4")
	_, err := newTestDownloader(1).Download(context.Background(), Job{URL: srv.URL, Target: target}, nil)
	if err == nil {
		t.Fatal("Download() succeeded on a truncated body")
	}
	if kind := media.KindOf(err); kind != media.KindNetwork {
		t.Errorf("kind = %v, want network", kind)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("target exists after failed download")
	}
	if _, err := os.Stat(target + partSuffix); !os.IsNotExist(err) {
		t.Error("partial file exists after failed download")
	}
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch hits.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.Write([]byte("video"))
		}
	}))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "a.mp4")
	if _, err := newTestDownloader(5).Download(context.Background(), Job{URL: srv.URL, Target: target}, nil); err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("requests = %d, want 3", n)
	}
}

func TestDownloadGivesUpAfterAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "a.mp4")
	_, err := newTestDownloader(3).Download(context.Background(), Job{URL: srv.URL, Target: target}, nil)
	if media.KindOf(err) != media.KindNetwork {
		t.Errorf("error = %v, want network kind", err)
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("requests = %d, want 3", n)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("target exists after failed download")
	}
}

func TestDownloadDoesNotRetryClientErrors(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusNotFound, http.StatusTooManyRequests} {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(status)
		}))

		_, err := newTestDownloader(5).Download(context.Background(), Job{URL: srv.URL, Target: filepath.Join(t.TempDir(), "a.mp4")}, nil)
		srv.Close()
		if media.KindOf(err) != media.KindNetwork {
			t.Errorf("status %d: error = %v, want network kind", status, err)
		}
		if n := hits.Load(); n != 1 {
			t.Errorf("status %d: requests = %d, want 1", status, n)
		}
	}
}

func TestDownloadInvalidURL(t *testing.T) {
	_, err := newTestDownloader(1).Download(context.Background(), Job{URL: "file:///etc/passwd", Target: filepath.Join(t.TempDir(), "a")}, nil)
	if media.KindOf(err) != media.KindInvalidInput {
		t.Errorf("error = %v, want invalid_input", err)
	}
}

func TestDownloadStorageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("video"))
	}))
	defer srv.Close()

	// A regular file where the target directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	_, err := newTestDownloader(1).Download(context.Background(), Job{URL: srv.URL, Target: filepath.Join(blocker, "a.mp4")}, nil)
	if media.KindOf(err) != media.KindStorage {
		t.Errorf("error = %v, want storage kind", err)
	}
}

func TestDownloadCancelled(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.Write(make([]byte, 1000))
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	target := filepath.Join(t.TempDir(), "a.mp4")
	_, err := newTestDownloader(1).Download(ctx, Job{URL: srv.URL, Target: target}, nil)
	if err == nil {
		t.Fatal("Download() succeeded after cancellation")
	}
	if _, err := os.Stat(target + partSuffix); !os.IsNotExist(err) {
		t.Error("partial file exists after cancellation")
	}
}
