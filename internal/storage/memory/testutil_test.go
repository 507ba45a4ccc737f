package memory

import "time"

// ptr returns a pointer to v. Convenience for building nullable test fixtures.
func ptr[T any](v T) *T {
	return &v
}

// day parses an ISO date into the canonical UTC-midnight observation date.
func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
