package proposer

import "time"

// timer/ticker are abstracted exactly as the teacher does in its raft node,
// so tests can inject deterministic fakes instead of racing real wall clocks.
type timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type (
	timerFactory  func(d time.Duration) timer
	tickerFactory func(d time.Duration) ticker
)

type stdTimer struct{ t *time.Timer }

func (t *stdTimer) C() <-chan time.Time        { return t.t.C }
func (t *stdTimer) Stop() bool                 { return t.t.Stop() }
func (t *stdTimer) Reset(d time.Duration) bool { return t.t.Reset(d) }

func defaultTimerFactory(d time.Duration) timer { return &stdTimer{t: time.NewTimer(d)} }

type stdTicker struct{ t *time.Ticker }

func (t *stdTicker) C() <-chan time.Time { return t.t.C }
func (t *stdTicker) Stop()               { t.t.Stop() }

func defaultTickerFactory(d time.Duration) ticker { return &stdTicker{t: time.NewTicker(d)} }
