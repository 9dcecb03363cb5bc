package clock

import "time"

type Clock interface {
	Now() time.Time
}

func NewReal() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// FakeClock is a manually driven clock for tests.
type FakeClock struct {
	CurrentTime time.Time
}

func (fc *FakeClock) Now() time.Time {
	return fc.CurrentTime
}

func (fc *FakeClock) Advance(d time.Duration) {
	fc.CurrentTime = fc.CurrentTime.Add(d)
}
