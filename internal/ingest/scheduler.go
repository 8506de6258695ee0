// Package ingest implements the fixed-rate multi-worker ingestion loop
// that scrapes the upstream fetcher and upserts points into the store.
package ingest

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/gencurrent/async-socket-exchange-rate/internal/fetcher"
	"github.com/gencurrent/async-socket-exchange-rate/internal/model"
	"github.com/gencurrent/async-socket-exchange-rate/internal/monitoring"
	"github.com/gencurrent/async-socket-exchange-rate/internal/rpcerr"
	"github.com/gencurrent/async-socket-exchange-rate/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Scheduler runs a fixed pool of staggered workers, each ticking at
// Interval. Worker k sleeps k/Workers seconds before its first tick so
// that, across Workers workers, the effective per-asset sample rate is
// Workers times the per-worker rate.
type Scheduler struct {
	Store    store.Store
	Fetcher  *fetcher.Fetcher
	Workers  int
	Interval time.Duration
	Logger   zerolog.Logger

	assets []model.Asset
}

// Run blocks until ctx is canceled or any worker returns a non-nil
// error, at which point every sibling worker is canceled too. A
// worker's own error is never swallowed here: the caller (main) is
// expected to exit the process so the supervisor restarts it, since
// partial ingestion silently degrades the perceived sample rate.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.syncAssets(ctx); err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	for k := 0; k < s.Workers; k++ {
		k := k
		group.Go(func() error {
			return s.worker(ctx, k)
		})
	}
	return group.Wait()
}

func (s *Scheduler) worker(ctx context.Context, k int) error {
	preSleep := time.Duration(float64(time.Second) * float64(k) / float64(s.Workers))
	timer := time.NewTimer(preSleep)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		if err := s.tick(ctx); err != nil {
			if errors.Is(err, rpcerr.ErrInvariant) {
				return err
			}
			// Upstream/transport failures are logged and retried next tick.
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) syncAssets(ctx context.Context) error {
	if len(s.assets) > 0 {
		return nil
	}
	assets, err := s.Store.ListAssets(ctx)
	if err != nil {
		return err
	}
	s.assets = assets
	return nil
}

func (s *Scheduler) tick(ctx context.Context) error {
	if err := s.syncAssets(ctx); err != nil {
		s.Logger.Error().Err(err).Msg("failed to sync tracked assets")
		return nil
	}
	if len(s.assets) == 0 {
		return nil
	}

	rates, err := s.Fetcher.FetchRates(ctx)
	if err != nil {
		class := "transport"
		if errors.Is(err, rpcerr.ErrUpstreamFormat) {
			class = "format"
		}
		monitoring.UpstreamErrors.WithLabelValues(class).Inc()
		monitoring.IngestionTicks.WithLabelValues("upstream_error").Inc()
		s.Logger.Warn().Err(err).Msg("upstream fetch failed, retrying next tick")
		return nil
	}

	byName := make(map[string]fetcher.RateDTO, len(rates))
	for _, r := range rates {
		byName[r.Symbol] = r
	}

	now := time.Now().Unix()
	inserted := 0
	for _, asset := range s.assets {
		dto, ok := byName[asset.Name]
		if !ok {
			continue
		}
		value := dto.Mid()
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		newlyInserted, err := s.Store.UpsertPoint(ctx, asset.ID, now, value)
		if err != nil {
			s.Logger.Error().Err(err).Int64("asset_id", asset.ID).Msg("upsert point failed")
			continue
		}
		if newlyInserted {
			inserted++
		}
	}

	monitoring.IngestionTicks.WithLabelValues("ok").Inc()
	monitoring.IngestionPointsInserted.Add(float64(inserted))
	s.Logger.Info().Int("inserted", inserted).Msg("ingestion tick complete")
	return nil
}
