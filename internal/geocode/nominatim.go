package geocode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Nominatim reverse-geocodes against a Nominatim instance. Results are
// cached by coordinate rounded to three decimals (about 110m), which is
// plenty for trip labels and keeps request volume within the public
// instance's usage policy.
type Nominatim struct {
	client *resty.Client

	mu    sync.Mutex
	cache map[string]string
}

type nominatimResponse struct {
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
}

func NewNominatim(baseURL string) *Nominatim {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("User-Agent", "fleettrack/1.0")
	return &Nominatim{
		client: client,
		cache:  make(map[string]string),
	}
}

func (n *Nominatim) Resolve(ctx context.Context, lat, lon float64) (string, error) {
	key := fmt.Sprintf("%.3f,%.3f", lat, lon)

	n.mu.Lock()
	if name, ok := n.cache[key]; ok {
		n.mu.Unlock()
		return name, nil
	}
	n.mu.Unlock()

	var result nominatimResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format": "jsonv2",
			"lat":    fmt.Sprintf("%f", lat),
			"lon":    fmt.Sprintf("%f", lon),
			"zoom":   "16",
		}).
		SetResult(&result).
		Get("/reverse")
	if err != nil {
		return "", fmt.Errorf("reverse geocode request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("reverse geocode returned status %d", resp.StatusCode())
	}

	name := placeName(result)
	if name == "" {
		return "", fmt.Errorf("reverse geocode returned no usable name for %s", key)
	}

	n.mu.Lock()
	n.cache[key] = name
	n.mu.Unlock()
	return name, nil
}

// placeName picks the most specific short component Nominatim returned.
func placeName(r nominatimResponse) string {
	for _, key := range []string{"road", "suburb", "village", "town", "city", "state"} {
		if v := r.Address[key]; v != "" {
			return v
		}
	}
	return r.DisplayName
}
