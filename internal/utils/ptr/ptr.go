// Package ptr has small helpers for optional values.
package ptr

// To creates a pointer to the given value.
func To[T any](v T) *T {
	return &v
}

// String creates a pointer to the given string value.
func String(s string) *string {
	return &s
}

// NonEmpty returns nil for the zero string and a pointer otherwise.
func NonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to value, or def when p is nil.
func Deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
