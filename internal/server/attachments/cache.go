// Package attachments resolves object keys to signed delivery URLs and
// memoizes them per (user, object).
//
// A cached URL is kept for only a fraction of its signed validity, so it is
// always replaced well before the URL itself expires.
package attachments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/keybud/internal/common"
	"github.com/dmitrijs2005/keybud/internal/logging"
	"github.com/dmitrijs2005/keybud/internal/server/kv"
	"github.com/dmitrijs2005/keybud/internal/server/metrics"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultValidity      = 5 * time.Minute
	DefaultCacheFraction = 0.8

	// signConcurrency bounds parallel signing of cache misses.
	signConcurrency = 8
)

// URLCache resolves object keys through a Signer, caching in a kv.Store.
type URLCache struct {
	store    kv.Store
	signer   Signer
	logger   logging.Logger
	validity time.Duration
	cacheTTL time.Duration
}

// NewURLCache builds a cache that signs URLs valid for validity and keeps
// them for fraction*validity. Out-of-range arguments fall back to the
// defaults.
func NewURLCache(store kv.Store, signer Signer, logger logging.Logger, validity time.Duration, fraction float64) *URLCache {
	if validity <= 0 {
		validity = DefaultValidity
	}
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultCacheFraction
	}
	return &URLCache{
		store:    store,
		signer:   signer,
		logger:   logger.With("module", "attachments"),
		validity: validity,
		cacheTTL: time.Duration(float64(validity) * fraction),
	}
}

// CacheTTL is how long a freshly signed URL is served from cache.
func (c *URLCache) CacheTTL() time.Duration { return c.cacheTTL }

func cacheKey(userID int64, objectKey string) string {
	return fmt.Sprintf("attachment:signed_url:%d:%s", userID, common.EncodeKeySegment(objectKey))
}

// ResolveURLs returns a signed URL for each key. Keys that could not be
// signed are missing from the map and reported in the aggregated error;
// they never prevent the other keys from resolving.
func (c *URLCache) ResolveURLs(ctx context.Context, objectKeys []string, userID int64) (map[string]string, error) {
	keys := dedupe(objectKeys)
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	cacheKeys := make([]string, len(keys))
	for i, k := range keys {
		cacheKeys[i] = cacheKey(userID, k)
	}

	cached, err := c.store.MGet(ctx, cacheKeys)
	if err != nil {
		c.logger.Warn(ctx, "signed url cache read failed, signing all keys", "error", err)
		cached = nil
	}

	var misses []string
	for i, k := range keys {
		if i < len(cached) && cached[i].Found && cached[i].String != "" {
			out[k] = cached[i].String
			metrics.RecordSignedURL(metrics.OutcomeHit)
			continue
		}
		misses = append(misses, k)
	}

	if len(misses) == 0 {
		return out, nil
	}

	var (
		mu   sync.Mutex
		errs error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(signConcurrency)
	for _, k := range misses {
		g.Go(func() error {
			u, err := c.signer.Sign(gctx, k, c.validity)
			if err != nil {
				metrics.RecordSignedURL(metrics.OutcomeError)
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("sign %q: %w", k, err))
				mu.Unlock()
				// Other keys keep going.
				return nil
			}
			metrics.RecordSignedURL(metrics.OutcomeMiss)

			if err := c.store.Set(gctx, cacheKey(userID, k), u, c.cacheTTL); err != nil {
				c.logger.Warn(gctx, "signed url cache write failed", "object_key", k, "error", err)
			}

			mu.Lock()
			out[k] = u
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil {
		c.logger.Warn(ctx, "some attachment urls could not be signed",
			"failed", len(multierr.Errors(errs)), "requested", len(keys), "error", errs)
	}
	return out, errs
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
