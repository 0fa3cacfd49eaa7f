package validation

import (
	"math"
	"testing"
	"time"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
)

func TestIsValidID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{name: "uuid", id: "0b6f5a3e-4d0c-4a52-9c1e-3f1f1c7b9a10", valid: true},
		{name: "slug", id: "spot_42", valid: true},
		{name: "empty", id: "", valid: false},
		{name: "path traversal", id: "../etc", valid: false},
		{name: "space", id: "spot 1", valid: false},
		{name: "too long", id: string(make([]byte, 65)), valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidID(tt.id); got != tt.valid {
				t.Fatalf("IsValidID(%q) = %v, want %v", tt.id, got, tt.valid)
			}
		})
	}
}

func TestPlate(t *testing.T) {
	tests := []struct {
		name       string
		plate      string
		normalized string
		valid      bool
	}{
		{name: "already normal", plate: "ABC1234", normalized: "ABC1234", valid: true},
		{name: "lowercase with dash", plate: "abc-1234", normalized: "ABC1234", valid: true},
		{name: "spaces", plate: " NAB 123 ", normalized: "NAB123", valid: true},
		{name: "too short", plate: "A", normalized: "A", valid: false},
		{name: "too long", plate: "ABCDEFGHIJK", normalized: "ABCDEFGHIJK", valid: false},
		{name: "symbols", plate: "AB#12", normalized: "AB#12", valid: false},
		{name: "empty", plate: "", normalized: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePlate(tt.plate); got != tt.normalized {
				t.Fatalf("NormalizePlate(%q) = %q, want %q", tt.plate, got, tt.normalized)
			}
			if got := IsValidPlate(tt.plate); got != tt.valid {
				t.Fatalf("IsValidPlate(%q) = %v, want %v", tt.plate, got, tt.valid)
			}
		})
	}
}

func TestParseWindow(t *testing.T) {
	start, end, err := ParseWindow("2026-10-19T18:30:00Z", "2026-10-19T20:30:00+00:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if end.Sub(start) != 2*time.Hour {
		t.Fatalf("expected 2h window, got %v", end.Sub(start))
	}

	tests := []struct {
		name       string
		start, end string
		wantErrs   int
	}{
		{name: "inverted", start: "2026-10-19T20:00:00Z", end: "2026-10-19T18:00:00Z", wantErrs: 1},
		{name: "equal", start: "2026-10-19T20:00:00Z", end: "2026-10-19T20:00:00Z", wantErrs: 1},
		{name: "both malformed", start: "tomorrow", end: "", wantErrs: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseWindow(tt.start, tt.end)
			ve, ok := err.(*model.ValidationError)
			if !ok {
				t.Fatalf("expected *model.ValidationError, got %T (%v)", err, err)
			}
			if len(ve.Errors) != tt.wantErrs {
				t.Fatalf("expected %d errors, got %v", tt.wantErrs, ve.Errors)
			}
		})
	}
}

func TestDiscountErrors(t *testing.T) {
	tests := []struct {
		name  string
		d     model.DiscountRequest
		valid bool
	}{
		{name: "senior", d: model.DiscountRequest{Type: model.DiscountSenior}, valid: true},
		{name: "pwd with value", d: model.DiscountRequest{Type: model.DiscountPWD, Value: 50}},
		{name: "promo", d: model.DiscountRequest{Type: model.DiscountPromo, Value: 15}, valid: true},
		{name: "promo without value", d: model.DiscountRequest{Type: model.DiscountPromo}},
		{name: "loyalty negative", d: model.DiscountRequest{Type: model.DiscountLoyalty, Value: -1}},
		{name: "loyalty infinite", d: model.DiscountRequest{Type: model.DiscountLoyalty, Value: math.Inf(1)}},
		{name: "unknown type", d: model.DiscountRequest{Type: "student", Value: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := DiscountErrors(tt.d)
			if tt.valid && len(errs) != 0 {
				t.Fatalf("expected valid discount, got %v", errs)
			}
			if !tt.valid && len(errs) != 1 {
				t.Fatalf("expected one error, got %v", errs)
			}
		})
	}
}
