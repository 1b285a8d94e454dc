package main

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type erroringGeocoder struct{ err error }

func (g *erroringGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	return "", g.err
}

func TestStaticGeocoder_ReturnsConfiguredPlace(t *testing.T) {
	g := &staticGeocoder{place: defaultMockPlaceName}
	place, err := g.ReverseGeocode(context.Background(), 9.93, 78.12)
	if err != nil {
		t.Fatalf("ReverseGeocode: %v", err)
	}
	if place != defaultMockPlaceName {
		t.Fatalf("place = %q, want %q", place, defaultMockPlaceName)
	}
}

func TestStaticGeocoder_CancelledContext(t *testing.T) {
	g := &staticGeocoder{place: defaultMockPlaceName, delay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.ReverseGeocode(ctx, 9.93, 78.12); err == nil {
		t.Fatal("expected context cancellation error")
	}
}

func TestFallbackGeocoder_UsesSecondaryOnError(t *testing.T) {
	g := &FallbackGeocoder{
		Primary:   &erroringGeocoder{err: fmt.Errorf("upstream down")},
		Secondary: &staticGeocoder{place: defaultMockPlaceName},
	}
	place, err := g.ReverseGeocode(context.Background(), 9.93, 78.12)
	if err != nil {
		t.Fatalf("ReverseGeocode: %v", err)
	}
	if place != defaultMockPlaceName {
		t.Fatalf("place = %q, want fallback place", place)
	}
}

func TestFallbackGeocoder_UsesSecondaryOnEmptyResult(t *testing.T) {
	g := &FallbackGeocoder{
		Primary:   &staticGeocoder{place: ""},
		Secondary: &staticGeocoder{place: "Anna Nagar, Madurai"},
	}
	place, err := g.ReverseGeocode(context.Background(), 9.93, 78.12)
	if err != nil {
		t.Fatalf("ReverseGeocode: %v", err)
	}
	if place != "Anna Nagar, Madurai" {
		t.Fatalf("place = %q, want secondary place", place)
	}
}

func TestFallbackGeocoder_PrefersPrimary(t *testing.T) {
	g := &FallbackGeocoder{
		Primary:   &staticGeocoder{place: "Goripalayam, Madurai"},
		Secondary: &staticGeocoder{place: "unused"},
	}
	place, err := g.ReverseGeocode(context.Background(), 9.93, 78.12)
	if err != nil {
		t.Fatalf("ReverseGeocode: %v", err)
	}
	if place != "Goripalayam, Madurai" {
		t.Fatalf("place = %q, want primary place", place)
	}
}
