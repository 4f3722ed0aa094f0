package distance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"drive-time-scheduler/internal/domain"
	"drive-time-scheduler/internal/platform/logger"
	"drive-time-scheduler/internal/platform/obs"
	"drive-time-scheduler/internal/ports"

	"golang.org/x/time/rate"
)

// LegCache persists origin -> destination legs between runs.
type LegCache interface {
	GetMany(ctx context.Context, origin string, destinations []string) (map[string]ports.DistanceResult, error)
	PutMany(ctx context.Context, origin string, results map[string]ports.DistanceResult) error
}

// GeocodeCache persists address -> coordinate lookups.
type GeocodeCache interface {
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}

// ORSConfig configures the OpenRouteService client.
type ORSConfig struct {
	APIKey            string
	BaseURL           string
	Profile           string
	Country           string
	RequestsPerSecond float64
}

// ORSClient implements ports.DistanceMatrixProvider using OpenRouteService.
//
// Lookups go through the leg cache, then the geocode cache, and only then to
// the API. Outgoing requests share one token bucket so that bursts from
// several calendar sessions stay under the account quota.
// The client is safe for concurrent use.
type ORSClient struct {
	session  *http.Client
	cfg      ORSConfig
	limiter  *rate.Limiter
	legs     LegCache
	geocodes GeocodeCache
	log      logger.Logger
}

func NewORSClient(cfg ORSConfig, legs LegCache, geocodes GeocodeCache, log logger.Logger) (*ORSClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("new ORS client: api key is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openrouteservice.org"
	}
	if cfg.Profile == "" {
		cfg.Profile = "driving-car"
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}

	return &ORSClient{
		session:  &http.Client{Timeout: 10 * time.Second},
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		legs:     legs,
		geocodes: geocodes,
		log:      logger.OrNop(log),
	}, nil
}

func (o *ORSClient) GetDistance(ctx context.Context, origin, destination string) (ports.DistanceResult, error) {
	from := domain.NormalizeLocation(origin)
	to := domain.NormalizeLocation(destination)
	if from == "" || to == "" {
		return ports.DistanceResult{}, errors.New("get ORS distance: origin and destination must be non-empty")
	}
	if from == to {
		return ports.DistanceResult{}, nil
	}

	results, err := o.GetDistances(ctx, from, []string{to})
	if err != nil {
		return ports.DistanceResult{}, fmt.Errorf("get ORS distance %q -> %q: %w", from, to, err)
	}
	r, ok := results[to]
	if !ok {
		return ports.DistanceResult{}, fmt.Errorf("get ORS distance: no result for %q -> %q", from, to)
	}
	return r, nil
}

// GetDistances resolves one origin -> many destinations row. Destinations equal
// to the origin are left out of the result.
func (o *ORSClient) GetDistances(
	ctx context.Context,
	origin string,
	destinations []string,
) (_ map[string]ports.DistanceResult, err error) {
	defer obs.Time(ctx, o.log, "ors.GetDistances")(&err)

	from := domain.NormalizeLocation(origin)
	if from == "" {
		return nil, errors.New("get ORS distances: origin must be non-empty")
	}

	dests := uniqueLocations(destinations, from)
	if len(dests) == 0 {
		return map[string]ports.DistanceResult{}, nil
	}

	out := make(map[string]ports.DistanceResult, len(dests))
	if o.legs != nil {
		hits, err := o.legs.GetMany(ctx, from, dests)
		if err != nil {
			// A broken cache must not take routing down with it.
			o.log.Warnf("leg cache read failed origin=%q err=%v", from, err)
		}
		for k, v := range hits {
			out[k] = v
		}
	}

	misses := make([]string, 0, len(dests))
	for _, d := range dests {
		if _, ok := out[d]; !ok {
			misses = append(misses, d)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	coords, err := o.coordinates(ctx, append([]string{from}, misses...))
	if err != nil {
		return nil, fmt.Errorf("get ORS distances: %w", err)
	}

	destCoords := make([]domain.Coordinates, 0, len(misses))
	for _, d := range misses {
		destCoords = append(destCoords, coords[d])
	}

	fetched, err := o.fetchMatrixRow(ctx, coords[from], misses, destCoords)
	if err != nil {
		return nil, fmt.Errorf("get ORS distances: %w", err)
	}

	if o.legs != nil {
		if err := o.legs.PutMany(ctx, from, fetched); err != nil {
			o.log.Warnf("leg cache write failed origin=%q err=%v", from, err)
		}
	}

	for k, v := range fetched {
		out[k] = v
	}
	return out, nil
}

// coordinates resolves every address through the geocode cache first and
// geocodes the rest.
func (o *ORSClient) coordinates(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error) {
	coords := make(map[string]domain.Coordinates, len(addresses))
	if o.geocodes != nil {
		hits, err := o.geocodes.GetMany(ctx, addresses)
		if err != nil {
			o.log.Warnf("geocode cache read failed err=%v", err)
		}
		for k, v := range hits {
			coords[k] = v
		}
	}

	var missing []string
	for _, a := range addresses {
		if _, ok := coords[a]; !ok {
			missing = append(missing, a)
		}
	}
	if len(missing) == 0 {
		return coords, nil
	}

	fresh, err := o.geocodeMany(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("geocode addresses: %w", err)
	}
	if o.geocodes != nil && len(fresh) > 0 {
		if err := o.geocodes.PutMany(ctx, fresh); err != nil {
			o.log.Warnf("geocode cache write failed err=%v", err)
		}
	}
	for k, v := range fresh {
		coords[k] = v
	}

	for _, a := range addresses {
		if _, ok := coords[a]; !ok {
			return nil, fmt.Errorf("missing coordinate for %q", a)
		}
	}
	return coords, nil
}

// uniqueLocations normalizes, drops blanks, duplicates and skip.
func uniqueLocations(in []string, skip string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = domain.NormalizeLocation(s)
		if s == "" || s == skip {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
