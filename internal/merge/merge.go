// Package merge combines separately downloaded video and audio tracks with
// ffmpeg. Arguments are passed as an explicit slice, never through a shell.
package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"vidparse/internal/media"
)

// maxStderr bounds how much ffmpeg output is kept for error messages.
const maxStderr = 4096

// partSuffix marks a merge that has not finished.
const partSuffix = ".part.mp4"

// Merger runs ffmpeg. The zero value uses "ffmpeg" from PATH.
type Merger struct {
	FFmpeg string
	Logger *zap.Logger
}

// New creates a Merger for the given ffmpeg binary name or path.
func New(ffmpeg string, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{FFmpeg: ffmpeg, Logger: logger}
}

func (m *Merger) binary() string {
	if m.FFmpeg == "" {
		return "ffmpeg"
	}
	return m.FFmpeg
}

func (m *Merger) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

// Available reports whether the ffmpeg binary can be found.
func (m *Merger) Available() bool {
	_, err := exec.LookPath(m.binary())
	return err == nil
}

// Merge muxes videoPath and audioPath into outputPath, copying the video
// stream and re-encoding audio to AAC. On success both inputs are deleted.
// ffmpeg writes to a temporary file that is renamed into place, so
// outputPath only ever holds a complete merge. On failure the inputs are
// kept.
func (m *Merger) Merge(ctx context.Context, videoPath, audioPath, outputPath string) error {
	ffmpegPath, err := exec.LookPath(m.binary())
	if err != nil {
		return media.NewError(media.KindMergeToolUnavailable, "服务器缺少音视频合并工具",
			fmt.Errorf("ffmpeg not found: %w", err))
	}

	for _, in := range []string{videoPath, audioPath} {
		if _, err := os.Stat(in); err != nil {
			return media.NewError(media.KindMergeFailed, "音视频合并失败", fmt.Errorf("merge input: %w", err))
		}
	}

	// ffmpeg picks the container from the extension, so the temporary
	// name keeps ".mp4".
	partPath := outputPath + partSuffix

	args := []string{
		"-y", // Overwrite output
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy", // Keep the video stream as is
		"-c:a", "aac",
		"-strict", "experimental",
		partPath,
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	m.logger().Debug("merging tracks",
		zap.String("video", videoPath),
		zap.String("audio", audioPath),
		zap.String("output", outputPath),
	)

	if err := cmd.Run(); err != nil {
		os.Remove(partPath)
		return media.NewError(media.KindMergeFailed, "音视频合并失败",
			fmt.Errorf("ffmpeg failed: %w: %s", err, tail(stderr.String(), maxStderr)))
	}

	if info, err := os.Stat(partPath); err != nil || info.Size() == 0 {
		os.Remove(partPath)
		return media.NewError(media.KindMergeFailed, "音视频合并失败",
			errors.New("ffmpeg exited cleanly but produced no output"))
	}
	if err := os.Rename(partPath, outputPath); err != nil {
		os.Remove(partPath)
		return media.NewError(media.KindStorage, "", fmt.Errorf("renaming merged output: %w", err))
	}

	for _, in := range []string{videoPath, audioPath} {
		if err := os.Remove(in); err != nil && !os.IsNotExist(err) {
			m.logger().Warn("removing merge input", zap.String("path", in), zap.Error(err))
		}
	}
	return nil
}

// tail returns at most n trailing bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return "..." + s[len(s)-n:]
	}
	return s
}
