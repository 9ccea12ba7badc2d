package models

import "time"

// ConversionRate holds multipliers from BaseCurrency to other currencies.
type ConversionRate struct {
	BaseCurrency string
	LastUpdate   time.Time
	NextUpdate   time.Time
	Rates        map[string]float64
}

// Stale reports whether the entry is due for a refresh at now.
func (r ConversionRate) Stale(now time.Time) bool {
	return !r.NextUpdate.After(now)
}
