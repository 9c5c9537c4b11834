// Package ptr has helpers for the optional fields of Habitica payloads.
package ptr

// To returns a pointer to a copy of v.
func To[T any](v T) *T {
	return &v
}

// IsTrue reports whether p is set and true. A nil flag is neither true nor false.
func IsTrue(p *bool) bool {
	return p != nil && *p
}

// IsFalse reports whether p is set and false.
func IsFalse(p *bool) bool {
	return p != nil && !*p
}
