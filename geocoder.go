package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Geocoder resolves raw coordinates into a human-readable place
// description for display on a report.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// staticGeocoder returns a fixed place name after a short simulated
// lookup delay. It stands in for a real reverse-geocoding provider.
type staticGeocoder struct {
	place string
	delay time.Duration
}

func (g *staticGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return g.place, nil
}

// NominatimGeocoder resolves places via OSM Nominatim.
// CAUTION: Requires User-Agent and has strict rate limits (1 req/sec)
type NominatimGeocoder struct {
	UserAgent string
	Client    *http.Client
	mu        sync.Mutex
	lastCall  time.Time
}

func (g *NominatimGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	g.mu.Lock()
	elapsed := time.Since(g.lastCall)
	if elapsed < time.Second {
		time.Sleep(time.Second - elapsed)
	}
	g.lastCall = time.Now()
	g.mu.Unlock()

	u := fmt.Sprintf("https://nominatim.openstreetmap.org/reverse?format=jsonv2&lat=%f&lon=%f&addressdetails=1", lat, lng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", g.UserAgent)

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nominatim error: %d", resp.StatusCode)
	}

	var data struct {
		Address struct {
			Road    string `json:"road"`
			Suburb  string `json:"suburb"`
			City    string `json:"city"`
			Town    string `json:"town"`
			Village string `json:"village"`
		} `json:"address"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", err
	}

	city := data.Address.City
	if city == "" {
		city = data.Address.Town
	}
	if city == "" {
		city = data.Address.Village
	}

	area := data.Address.Suburb
	if area == "" {
		area = data.Address.Road
	}

	switch {
	case area != "" && city != "":
		return fmt.Sprintf("%s, %s", area, city), nil
	case city != "":
		return city, nil
	case area != "":
		return area, nil
	}
	return "", nil
}

// FallbackGeocoder tries the primary provider and falls back to the
// secondary when the primary errors or finds nothing.
type FallbackGeocoder struct {
	Primary   Geocoder
	Secondary Geocoder
}

func (g *FallbackGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	place, err := g.Primary.ReverseGeocode(ctx, lat, lng)
	if err != nil || place == "" {
		return g.Secondary.ReverseGeocode(ctx, lat, lng)
	}
	return place, nil
}
