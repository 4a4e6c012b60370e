package aggregate

import "time"

func secondsToTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
