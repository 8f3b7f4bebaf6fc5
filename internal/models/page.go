package models

import "math"

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
}

// NewPage clamps page and limit into valid ranges.
func NewPage(number, limit, maxLimit int) Page {
	if maxLimit <= 0 {
		maxLimit = MaxPageLimit
	}
	if number < 1 {
		number = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	// keeps Offset within int32 on every platform
	if maxNumber := math.MaxInt32/limit + 1; number > maxNumber {
		number = maxNumber
	}
	return Page{Number: number, Limit: limit}
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}
