package core

import "time"

// Clock supplies the current instant. Every automation step reads time through it.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock, in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	t = t.UTC()
	return ClockFunc(func() time.Time { return t })
}
