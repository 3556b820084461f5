package clock

import "time"

// Clock abstracts time for components whose behavior depends on it (PIN
// lockout countdowns, outbox backoff). Tests swap in the Fake.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func New() Clock { return realClock{} }

func (realClock) Now() time.Time                         { return time.Now().UTC() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Fake is a manually advanced clock for deterministic tests.
type Fake struct {
	Current time.Time
}

func NewFake(start time.Time) *Fake { return &Fake{Current: start} }

func (f *Fake) Now() time.Time { return f.Current }

func (f *Fake) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- f.Current.Add(d)
	return ch
}

func (f *Fake) Advance(d time.Duration) { f.Current = f.Current.Add(d) }
