package frpei

import "time"

func daysSince(t time.Time) float64 {
	if t.IsZero() {
		return 999
	}
	return time.Since(t).Hours() / 24
}
