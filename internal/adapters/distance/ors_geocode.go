package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"drive-time-scheduler/internal/domain"
	"drive-time-scheduler/internal/platform/obs"
)

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// geocodeMany resolves each address with /geocode/search, best match only.
func (o *ORSClient) geocodeMany(ctx context.Context, addresses []string) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, o.log, "ors.geocodeMany")(&err)

	out := make(map[string]domain.Coordinates, len(addresses))
	for _, a := range uniqueLocations(addresses, "") {
		c, err := o.geocode(ctx, a)
		if err != nil {
			return nil, err
		}
		out[a] = c
	}
	return out, nil
}

func (o *ORSClient) geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	endpoint := o.cfg.BaseURL + "/geocode/search"

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := o.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("text", address)
		q.Set("size", "1")
		if o.cfg.Country != "" {
			q.Set("boundary.country", o.cfg.Country)
		}
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: decode response: %w", address, err)
	}
	if len(decoded.Features) == 0 {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: no results", address)
	}

	c, ok := domain.CoordinatesFromLonLat(decoded.Features[0].Geometry.Coordinates)
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: invalid coordinate format", address)
	}
	return c, nil
}
