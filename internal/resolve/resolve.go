// Package resolve runs platform extraction under a bounded retry policy.
package resolve

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vidparse/internal/extract"
	"vidparse/internal/media"
	"vidparse/internal/retry"
)

// Resolver turns a canonical page URL into media URLs. Each attempt builds
// a fresh extractor so no page state leaks between attempts.
type Resolver struct {
	factory  extract.Factory
	attempts map[media.Platform]int
	jitter   time.Duration
	logger   *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithAttempts overrides the per-platform attempt counts. Platforms not in
// the map get a single attempt.
func WithAttempts(attempts map[media.Platform]int) Option {
	return func(r *Resolver) { r.attempts = attempts }
}

// WithJitter sets the delay between attempts.
func WithJitter(d time.Duration) Option {
	return func(r *Resolver) { r.jitter = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// DefaultAttempts is the built-in attempt table.
func DefaultAttempts() map[media.Platform]int {
	return map[media.Platform]int{media.Xiaohongshu: 5}
}

// New creates a Resolver.
func New(factory extract.Factory, opts ...Option) *Resolver {
	r := &Resolver{
		factory:  factory,
		attempts: DefaultAttempts(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attempts returns the configured attempt count for platform.
func (r *Resolver) Attempts(platform media.Platform) int {
	if n := r.attempts[platform]; n > 0 {
		return n
	}
	return 1
}

// Resolve extracts media for pageURL, trying up to maxAttempts times until a
// video URL is found. An empty VideoURL in the result means every attempt
// came back empty; that is not an error.
func (r *Resolver) Resolve(ctx context.Context, platform media.Platform, pageURL string, maxAttempts int) media.ResolvedMedia {
	log := r.logger.With(zap.Stringer("platform", platform), zap.String("url", pageURL))

	return retry.Until(ctx, maxAttempts, r.jitter, func(ctx context.Context, attempt int) (media.ResolvedMedia, bool) {
		e, err := r.factory(platform, pageURL)
		if err != nil {
			log.Error("building extractor", zap.Error(err))
			// A construction error will not go away on retry.
			return media.ResolvedMedia{}, true
		}

		m := extract.Resolve(ctx, e)
		if m.Found() {
			if attempt > 1 {
				log.Info("extraction succeeded after retry", zap.Int("attempt", attempt))
			}
			return m, true
		}
		log.Warn("extraction returned no video",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
		)
		return m, false
	})
}

// ResolveDefault resolves with the configured attempt count for platform.
func (r *Resolver) ResolveDefault(ctx context.Context, platform media.Platform, pageURL string) media.ResolvedMedia {
	return r.Resolve(ctx, platform, pageURL, r.Attempts(platform))
}
