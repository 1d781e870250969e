package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const topProductsLimit = 5

// Service assembles dashboard snapshots. Snapshots are cached in Redis so
// the till home screen does not fan out six queries per refresh.
type Service struct {
	repo              Repository
	cache             *redis.Client
	logger            *slog.Logger
	cacheTTL          time.Duration
	lowStockThreshold float64
}

func NewService(repo Repository, cache *redis.Client, logger *slog.Logger, cacheTTL time.Duration, lowStockThreshold float64) *Service {
	return &Service{
		repo:              repo,
		cache:             cache,
		logger:            logger,
		cacheTTL:          cacheTTL,
		lowStockThreshold: lowStockThreshold,
	}
}

func dashboardKey(day time.Time) string {
	return fmt.Sprintf("dashboard:%s", day.Format("2006-01-02"))
}

// startOfDay returns midnight of t's calendar day in t's own zone. The
// dashboard day follows the store clock, not UTC.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Dashboard returns today's snapshot, from cache when fresh.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	day := startOfDay(time.Now())
	key := dashboardKey(day)

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var cached Dashboard
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("dashboard cache read", slog.Any("error", err))
		}
	}

	dashboard, err := s.build(ctx, day)
	if err != nil {
		return Dashboard{}, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(dashboard); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("dashboard cache write", slog.Any("error", err))
			}
		}
	}
	return dashboard, nil
}

// Refresh recomputes today's snapshot and overwrites the cache entry.
// Used by the warmup job so the first request of the morning is warm.
func (s *Service) Refresh(ctx context.Context) (Dashboard, error) {
	day := startOfDay(time.Now())
	dashboard, err := s.build(ctx, day)
	if err != nil {
		return Dashboard{}, err
	}
	if s.cache != nil {
		if raw, err := json.Marshal(dashboard); err == nil {
			if err := s.cache.Set(ctx, dashboardKey(day), raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("dashboard cache write", slog.Any("error", err))
			}
		}
	}
	return dashboard, nil
}

func (s *Service) build(ctx context.Context, day time.Time) (Dashboard, error) {
	from := day
	to := day.Add(24 * time.Hour)

	total, count, err := s.repo.SalesSummary(ctx, from, to)
	if err != nil {
		return Dashboard{}, fmt.Errorf("analytics: sales summary: %w", err)
	}
	mix, err := s.repo.PaymentMix(ctx, from, to)
	if err != nil {
		return Dashboard{}, fmt.Errorf("analytics: payment mix: %w", err)
	}
	lowStock, err := s.repo.LowStockCount(ctx, s.lowStockThreshold)
	if err != nil {
		return Dashboard{}, fmt.Errorf("analytics: low stock: %w", err)
	}
	owed, err := s.repo.SupplierCreditOwed(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("analytics: supplier credit: %w", err)
	}
	top, err := s.repo.TopProducts(ctx, from, to, topProductsLimit)
	if err != nil {
		return Dashboard{}, fmt.Errorf("analytics: top products: %w", err)
	}

	dashboard := Dashboard{
		Date:               day.Format("2006-01-02"),
		SalesTotal:         total,
		SalesCount:         count,
		PaymentMix:         mix,
		LowStockCount:      lowStock,
		SupplierCreditOwed: owed,
		TopProducts:        top,
		GeneratedAt:        time.Now(),
	}
	if count > 0 {
		dashboard.AverageSale = total / float64(count)
	}
	return dashboard, nil
}

// SalesReport returns per-day totals for the closed interval [from, to].
func (s *Service) SalesReport(ctx context.Context, from, to time.Time) ([]SalesReportRow, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("analytics: report range end before start")
	}
	return s.repo.DailySales(ctx, from, to.Add(24*time.Hour))
}
