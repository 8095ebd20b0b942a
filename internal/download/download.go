// Package download streams remote media to local files. Transient server
// and connection failures are retried; every other failure removes the
// partial output so a target path either holds a complete file or nothing.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"vidparse/internal/httputil"
	"vidparse/internal/media"
	"vidparse/internal/retry"
)

// chunkSize is the copy buffer size.
const chunkSize = 8192

// partSuffix marks a file that is still being written.
const partSuffix = ".part"

// Job describes one file to fetch.
type Job struct {
	URL     string
	Target  string
	Referer string
}

// ProgressFunc receives the bytes written so far and the expected total,
// which is -1 when the server does not send a length.
type ProgressFunc func(written, total int64)

// Options configures a Downloader.
type Options struct {
	Attempts int           // total attempts per request, including the first
	Backoff  time.Duration // wait before the first retry; doubles after each
	Timeout  time.Duration // upper bound for one job, body included
	Logger   *zap.Logger
}

// Downloader fetches files with a shared retrying client. It is safe for
// concurrent use.
type Downloader struct {
	client  *retryablehttp.Client
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Downloader.
func New(opts Options) *Downloader {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := retryablehttp.NewClient()
	c.HTTPClient = &http.Client{Transport: httputil.NewTransport()}
	c.RetryMax = opts.Attempts - 1
	c.RetryWaitMin = opts.Backoff
	c.RetryWaitMax = opts.Backoff << 4
	c.CheckRetry = checkRetry
	c.Backoff = func(min, max time.Duration, attemptNum int, _ *http.Response) time.Duration {
		return retry.Exponential(min, max, attemptNum+1)
	}
	// Hand the last response back instead of a generic "giving up" error so
	// the status code can be reported.
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.Logger = leveledLogger{opts.Logger.Sugar()}

	return &Downloader{client: c, timeout: opts.Timeout, logger: opts.Logger}
}

// retryableStatus lists the gateway and server errors worth retrying.
var retryableStatus = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		// The default policy retries connection errors and refuses
		// certificate, scheme and redirect-loop errors.
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return retryableStatus[resp.StatusCode], nil
}

// Download streams job.URL to job.Target and returns the number of bytes
// written. The payload goes to Target+".part" first and is renamed on
// success. On failure nothing is left at either path.
func (d *Downloader) Download(ctx context.Context, job Job, progress ProgressFunc) (int64, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	log := d.logger.With(zap.String("target", job.Target))

	base, err := httputil.NewRequest(ctx, job.URL, job.Referer)
	if err != nil {
		return 0, media.NewError(media.KindInvalidInput, "无效的视频链接", err)
	}
	base.Header.Set("Accept", "*/*")
	req, err := retryablehttp.FromRequest(base)
	if err != nil {
		return 0, media.NewError(media.KindInternal, "", fmt.Errorf("wrapping request: %w", err))
	}

	if err := os.MkdirAll(filepath.Dir(job.Target), 0755); err != nil {
		return 0, media.NewError(media.KindStorage, "", fmt.Errorf("creating target directory: %w", err))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, media.NewError(media.KindNetwork, "视频下载失败", fmt.Errorf("requesting %s: %w", job.URL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, media.NewError(media.KindNetwork, "视频下载失败", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, job.URL))
	}

	part := job.Target + partSuffix
	n, err := d.stream(resp, part, progress)
	if err != nil {
		os.Remove(part)
		log.Warn("download failed", zap.Int64("written", n), zap.Error(err))
		return n, err
	}

	if err := os.Rename(part, job.Target); err != nil {
		os.Remove(part)
		return n, media.NewError(media.KindStorage, "", fmt.Errorf("renaming download: %w", err))
	}

	log.Debug("download complete", zap.Int64("bytes", n))
	return n, nil
}

// stream copies the response body into path in fixed-size chunks.
func (d *Downloader) stream(resp *http.Response, path string, progress ProgressFunc) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, media.NewError(media.KindStorage, "", fmt.Errorf("creating file: %w", err))
	}
	defer f.Close()

	total := resp.ContentLength
	buf := make([]byte, chunkSize)
	var written int64
	for {
		nr, rerr := resp.Body.Read(buf)
		if nr > 0 {
			nw, werr := f.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, media.NewError(media.KindStorage, "", fmt.Errorf("writing file: %w", werr))
			}
			if progress != nil {
				progress(written, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return written, media.NewError(media.KindNetwork, "视频下载失败", fmt.Errorf("reading body: %w", rerr))
		}
	}

	if total >= 0 && written != total {
		return written, media.NewError(media.KindNetwork, "视频下载失败",
			fmt.Errorf("truncated body: got %d of %d bytes: %w", written, total, io.ErrUnexpectedEOF))
	}

	if err := f.Sync(); err != nil {
		return written, media.NewError(media.KindStorage, "", fmt.Errorf("syncing file: %w", err))
	}
	if err := f.Close(); err != nil {
		return written, media.NewError(media.KindStorage, "", fmt.Errorf("closing file: %w", err))
	}
	return written, nil
}

// Exists reports whether a complete file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// leveledLogger adapts zap to retryablehttp's logger interface.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
