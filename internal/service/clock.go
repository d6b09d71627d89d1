package service

import "time"

// Clock stamps order timestamps and computes sweep cutoffs.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
