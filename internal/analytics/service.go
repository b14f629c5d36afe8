package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"fleetgeo/internal/types"
)

// TripFilter narrows a trip history query. Zero values are unbounded.
// Bounds matches a pickup or dropoff inside the box. Pickup and Dropoff
// each constrain their own endpoint and must both hold when set.
type TripFilter struct {
	From    time.Time
	To      time.Time
	Bounds  *types.Bounds
	Pickup  *types.Bounds
	Dropoff *types.Bounds
	Limit   int
}

// TripStore is the read-only view of trip history.
type TripStore interface {
	ListCompletedTrips(ctx context.Context, filter TripFilter) ([]types.Trip, error)
	GetTrip(ctx context.Context, id string) (*types.Trip, error)
}

// ResultCache stores computed reports keyed by their inputs. Get reports a
// miss with found=false.
type ResultCache interface {
	Get(ctx context.Context, key string, dest any) (found bool, err error)
	Set(ctx context.Context, key string, value any) error
}

// ServiceConfig tunes the history window read per request. A read that
// matches more than MaxTrips trips keeps the newest MaxTrips and is
// reported as truncated.
type ServiceConfig struct {
	HistoryDays int
	MaxTrips    int
}

// Service answers analytics queries against a TripStore.
type Service struct {
	store  TripStore
	cache  ResultCache
	cfg    ServiceConfig
	clock  types.Clock
	logger *slog.Logger
}

// NewService creates a Service. cache may be nil.
func NewService(store TripStore, cache ResultCache, cfg ServiceConfig, clock types.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 90
	}
	if cfg.MaxTrips <= 0 {
		cfg.MaxTrips = 20000
	}
	return &Service{store: store, cache: cache, cfg: cfg, clock: clock, logger: logger}
}

// history reads one more row than MaxTrips so truncation can be told
// apart from an exact fit.
func (s *Service) history(ctx context.Context, filter TripFilter) ([]types.Trip, bool, error) {
	if filter.From.IsZero() {
		filter.From = s.clock.Now().AddDate(0, 0, -s.cfg.HistoryDays)
	}
	filter.Limit = s.cfg.MaxTrips + 1
	trips, err := s.store.ListCompletedTrips(ctx, filter)
	if err != nil {
		return nil, false, fmt.Errorf("list completed trips: %w", err)
	}
	if len(trips) > s.cfg.MaxTrips {
		s.logger.WarnContext(ctx, "trip history truncated",
			"max_trips", s.cfg.MaxTrips,
			"from", filter.From,
		)
		return trips[:s.cfg.MaxTrips], true, nil
	}
	return trips, false, nil
}

// Heatmap returns the activity heatmap for trips inside bounds (or all
// trips when bounds is nil) in [from, to]. truncated reports that the
// history read hit MaxTrips.
func (s *Service) Heatmap(ctx context.Context, bounds *types.Bounds, from, to time.Time, precision int) ([]types.HeatmapPoint, bool, error) {
	trips, truncated, err := s.history(ctx, TripFilter{From: from, To: to, Bounds: bounds})
	if err != nil {
		return nil, false, err
	}
	return Heatmap(trips, precision), truncated, nil
}

// PredictTraffic predicts traffic for a route at target. Results are cached
// per origin, destination, weekday and hour when a cache is configured.
// Cache failures are logged and never fail the request.
func (s *Service) PredictTraffic(ctx context.Context, origin, destination types.GeoPoint, target time.Time) (types.TrafficPrediction, error) {
	if err := origin.Validate(); err != nil {
		return types.TrafficPrediction{}, err
	}
	if err := destination.Validate(); err != nil {
		return types.TrafficPrediction{}, err
	}

	key := cacheKey("traffic", origin.String(), destination.String(), target.Weekday().String(), fmt.Sprint(target.Hour()))
	if s.cache != nil {
		var cached types.TrafficPrediction
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.WarnContext(ctx, "traffic prediction cache read failed", "error", err)
		} else if found {
			return cached, nil
		}
	}

	originBox := types.BoundsAround(origin, TrafficMatchDegrees)
	destBox := types.BoundsAround(destination, TrafficMatchDegrees)
	trips, truncated, err := s.history(ctx, TripFilter{Pickup: &originBox, Dropoff: &destBox})
	if err != nil {
		return types.TrafficPrediction{}, err
	}
	pred := PredictTraffic(trips, origin, destination, target)
	pred.Truncated = truncated

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, pred); err != nil {
			s.logger.WarnContext(ctx, "traffic prediction cache write failed", "error", err)
		}
	}
	return pred, nil
}

// AreaAnalytics computes area statistics for trips scheduled in [from, to].
func (s *Service) AreaAnalytics(ctx context.Context, bounds types.Bounds, from, to time.Time) (AreaStats, error) {
	if err := bounds.Validate(); err != nil {
		return AreaStats{}, err
	}
	trips, truncated, err := s.history(ctx, TripFilter{From: from, To: to, Bounds: &bounds})
	if err != nil {
		return AreaStats{}, err
	}
	stats := AreaAnalytics(trips, bounds, from, to)
	stats.Truncated = truncated
	return stats, nil
}

// RoutePlayback loads a trip and builds its playback. A missing trip is
// not_found_trip.
func (s *Service) RoutePlayback(ctx context.Context, tripID string) (*Playback, error) {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundTrip, "trip not found", nil,
			map[string]any{"trip_id": tripID})
	}
	return BuildPlayback(*trip)
}

// CorrectETA adjusts estimatedMinutes for the route from history.
func (s *Service) CorrectETA(ctx context.Context, origin, destination types.GeoPoint, estimatedMinutes float64) (ETACorrection, error) {
	if err := origin.Validate(); err != nil {
		return ETACorrection{}, err
	}
	if err := destination.Validate(); err != nil {
		return ETACorrection{}, err
	}
	originBox := types.BoundsAround(origin, ETAMatchDegrees)
	destBox := types.BoundsAround(destination, ETAMatchDegrees)
	trips, truncated, err := s.history(ctx, TripFilter{Pickup: &originBox, Dropoff: &destBox})
	if err != nil {
		return ETACorrection{}, err
	}
	corr := CorrectETA(trips, origin, destination, estimatedMinutes)
	corr.Truncated = truncated
	return corr, nil
}

func cacheKey(kind string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return "analytics:" + kind + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}
