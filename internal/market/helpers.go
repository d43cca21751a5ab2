package market

import (
	"strconv"
	"time"
)

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// timeFromUnix converts an exchange fractional-seconds timestamp to a
// time.Time.
func timeFromUnix(sec float64) time.Time {
	whole := int64(sec)
	frac := sec - float64(whole)
	return time.Unix(whole, int64(frac*1e9))
}
