package rsm

import "time"

type timer interface {
	C() <-chan time.Time
	Stop() bool
}

type timerFactory func(d time.Duration) timer

type stdTimer struct{ t *time.Timer }

func (t *stdTimer) C() <-chan time.Time { return t.t.C }
func (t *stdTimer) Stop() bool          { return t.t.Stop() }

func defaultTimerFactory(d time.Duration) timer { return &stdTimer{t: time.NewTimer(d)} }
