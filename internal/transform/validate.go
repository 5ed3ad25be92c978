package transform

import "github.com/mkoziy/habitat/ingest/internal/parse"

// Shared Stage-2 structural checks.
const (
	MaxRent      = 50000.0
	MaxBedrooms  = 20
	MaxBathrooms = 20.0
)

// CheckRequired fails when a required text field is blank.
func CheckRequired(r *Report, field, value string) {
	if value == "" {
		r.Fail(field, "is required")
	}
}

// CheckRent fails on non-positive or implausibly high rent.
func CheckRent(r *Report, rent *float64) {
	if rent != nil && (*rent <= 0 || *rent > MaxRent) {
		r.Fail("rent", "%.2f out of range (0, %.0f]", *rent, MaxRent)
	}
}

// CheckRooms fails on out-of-range bedroom or bathroom counts.
func CheckRooms(r *Report, bedrooms *int, bathrooms *float64) {
	if bedrooms != nil && (*bedrooms < 0 || *bedrooms > MaxBedrooms) {
		r.Fail("bedrooms", "%d out of range [0, %d]", *bedrooms, MaxBedrooms)
	}
	if bathrooms != nil && (*bathrooms < 0 || *bathrooms > MaxBathrooms) {
		r.Fail("bathrooms", "%.1f out of range [0, %.0f]", *bathrooms, MaxBathrooms)
	}
}

// CheckCoordinates fails when only one coordinate is set or either is out of range.
func CheckCoordinates(r *Report, lat, lng *float64) {
	if lat == nil && lng == nil {
		return
	}
	if lat == nil || lng == nil {
		r.Fail("coordinates", "latitude and longitude must be set together")
		return
	}
	if *lat < -90 || *lat > 90 || *lng < -180 || *lng > 180 {
		r.Fail("coordinates", "(%f, %f) out of range", *lat, *lng)
		return
	}
	if *lat == 0 && *lng == 0 {
		r.Fail("coordinates", "null island (0, 0)")
	}
}

// CheckPostalCode fails on a present but malformed postal code.
func CheckPostalCode(r *Report, code *string) {
	if code != nil && !parse.ValidPostalCode(*code) {
		r.Fail("postal_code", "malformed %q", *code)
	}
}
