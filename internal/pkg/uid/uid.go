// Package uid provides identifier generators behind small interfaces so
// callers can swap implementations in tests.
package uid

// StringID generates string identifiers.
type StringID interface {
	// Generate returns a new string identifier.
	Generate() string
}

// NumberID generates int64 identifiers.
type NumberID interface {
	// Generate returns a new numeric identifier.
	Generate() int64
}
