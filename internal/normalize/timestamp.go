package normalize

import (
	"fmt"
	"math"
	"time"

	"surveybox/internal/model"
)

// Structured timestamps cover years 1 through 9999.
const (
	minEpochSeconds = -62135596800
	maxEpochSeconds = 253402300799
)

// ParseTimestamp interprets s as a float count of epoch seconds and returns
// the UTC instant, keeping the fraction down to the nanosecond.
func ParseTimestamp(s string) (time.Time, error) {
	f, err := model.ParseEpochSeconds(s)
	if err != nil {
		return time.Time{}, err
	}
	if f < minEpochSeconds || f > maxEpochSeconds {
		return time.Time{}, fmt.Errorf("%q is outside the supported timestamp range", s)
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
}
