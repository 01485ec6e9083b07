package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hansel67/stock-analyzer/internal/contracts"
)

// Repository 저장소 추상화 (Source가 사용)
type Repository interface {
	GetRange(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error)
	LatestDate(ctx context.Context, symbol string) (time.Time, bool, error)
	SaveSeries(ctx context.Context, series contracts.PriceSeries, source string) (int, error)
}

// Upstream 원격 시세 제공자
type Upstream interface {
	FetchPrices(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error)
}

// Source serves price history from the store.
// With an upstream attached it reads through: stale or missing histories
// are fetched, saved, and then served.
type Source struct {
	repo      Repository
	upstream  Upstream
	staleness time.Duration
	log       zerolog.Logger
}

// NewSource creates a store-backed source; upstream may be nil
func NewSource(repo Repository, upstream Upstream, log zerolog.Logger) *Source {
	return &Source{
		repo:      repo,
		upstream:  upstream,
		staleness: 96 * time.Hour, // 주말 + 휴일 하루
		log:       log.With().Str("component", "store.source").Logger(),
	}
}

// FetchPrices implements pipeline.PriceSource
func (s *Source) FetchPrices(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	if s.upstream != nil {
		latest, ok, err := s.repo.LatestDate(ctx, symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Latest date lookup failed")
		}
		if err != nil || !ok || to.Sub(latest) > s.staleness {
			if err := s.refresh(ctx, symbol, from, to); err != nil {
				return contracts.PriceSeries{}, err
			}
		}
	}

	series, err := s.repo.GetRange(ctx, symbol, from, to)
	if err != nil {
		if errors.Is(err, contracts.ErrInvalidPrice) || errors.Is(err, contracts.ErrInvalidSeries) {
			return contracts.PriceSeries{}, err
		}
		return contracts.PriceSeries{}, fmt.Errorf("%w: load %s: %v", contracts.ErrDataUnavailable, symbol, err)
	}
	if series.Len() == 0 {
		return contracts.PriceSeries{}, fmt.Errorf("%w: no stored prices for %s", contracts.ErrDataUnavailable, symbol)
	}
	return series, nil
}

func (s *Source) refresh(ctx context.Context, symbol string, from, to time.Time) error {
	series, err := s.upstream.FetchPrices(ctx, symbol, from, to)
	if err != nil {
		return err
	}
	n, err := s.repo.SaveSeries(ctx, series, "upstream")
	if err != nil {
		return fmt.Errorf("%w: save %s: %v", contracts.ErrDataUnavailable, symbol, err)
	}
	s.log.Info().Str("symbol", symbol).Int("rows", n).Msg("Price history refreshed")
	return nil
}
