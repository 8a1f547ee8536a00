package export

import "time"

const secondsPerDay = 86400

// yearOf returns the UTC calendar year of a POSIX timestamp.
func yearOf(sec int64) int {
	return time.Unix(sec, 0).UTC().Year()
}

// yearBounds returns the first second of year and of the following year.
func yearBounds(year int) (start, end int64) {
	start = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	end = time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	return start, end
}

// dayOf returns the UTC day number of a POSIX timestamp.
func dayOf(sec int64) int64 {
	d := sec / secondsPerDay
	if sec%secondsPerDay < 0 {
		d--
	}
	return d
}
