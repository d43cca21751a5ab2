package account

import (
	"strconv"
	"time"
)

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func unixToTime(sec float64) time.Time {
	whole := int64(sec)
	frac := sec - float64(whole)
	return time.Unix(whole, int64(frac*1e9))
}
