package connectivity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxCorrelation is the largest accepted average fan relative speed.
const MaxCorrelation = 100

// ErrCorrelationRange is returned for values above MaxCorrelation.
var ErrCorrelationRange = errors.New("correlation out of range")

// Correlation is the last average fan relative speed received.
type Correlation struct {
	Value uint
	Known bool
}

// Contribution returns the value, or 0 while nothing has been received.
func (c Correlation) Contribution() uint {
	if !c.Known {
		return 0
	}
	return c.Value
}

// ParseCorrelation reads an unsigned decimal in [0, MaxCorrelation].
func ParseCorrelation(raw string) (uint, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse correlation %q: %w", raw, err)
	}
	if v > MaxCorrelation {
		return uint(v), fmt.Errorf("%w: %d > %d", ErrCorrelationRange, v, MaxCorrelation)
	}
	return uint(v), nil
}
