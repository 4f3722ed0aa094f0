package distance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"drive-time-scheduler/internal/domain"
	"drive-time-scheduler/internal/ports"
)

type matrixRequest struct {
	Locations    [][]float64 `json:"locations"`
	Sources      []int       `json:"sources"`
	Destinations []int       `json:"destinations"`
	Metrics      []string    `json:"metrics"`
	Units        string      `json:"units"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// fetchMatrixRow asks the matrix endpoint for a single source row.
func (o *ORSClient) fetchMatrixRow(
	ctx context.Context,
	origin domain.Coordinates,
	destinations []string,
	destCoords []domain.Coordinates,
) (map[string]ports.DistanceResult, error) {
	if len(destinations) != len(destCoords) {
		return nil, errors.New("matrix row: destinations and coordinates differ in length")
	}
	if len(destinations) == 0 {
		return map[string]ports.DistanceResult{}, nil
	}

	body := matrixRequest{
		Locations: [][]float64{origin.LonLat()},
		Sources:   []int{0},
		Metrics:   []string{"distance", "duration"},
		Units:     "m",
	}
	for i, c := range destCoords {
		body.Locations = append(body.Locations, c.LonLat())
		body.Destinations = append(body.Destinations, i+1)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("matrix row: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/matrix/%s", o.cfg.BaseURL, o.cfg.Profile)
	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("matrix row: %w", err)
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("matrix row: decode response: %w", err)
	}
	if len(mr.Distances) != 1 || len(mr.Durations) != 1 {
		return nil, fmt.Errorf("matrix row: expected 1 source row, got distances=%d durations=%d",
			len(mr.Distances), len(mr.Durations))
	}

	meters, seconds := mr.Distances[0], mr.Durations[0]
	if len(meters) != len(destinations) || len(seconds) != len(destinations) {
		return nil, fmt.Errorf("matrix row: got distances=%d durations=%d for %d destinations",
			len(meters), len(seconds), len(destinations))
	}

	out := make(map[string]ports.DistanceResult, len(destinations))
	for i, d := range destinations {
		// ORS reports unroutable pairs as null.
		if meters[i] == nil || seconds[i] == nil {
			return nil, fmt.Errorf("matrix row: no route to %q", d)
		}
		out[d] = ports.DistanceResult{
			DistanceMeters:  int(math.Round(*meters[i])),
			DurationSeconds: int(math.Round(*seconds[i])),
		}
	}
	return out, nil
}
