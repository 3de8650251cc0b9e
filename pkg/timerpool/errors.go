package timerpool

import tmerrors "github.com/c360/timermanager/errors"

// Sentinel errors surfaced through panics only -- every public Manager
// operation remains infallible by contract. The pool's two fatal conditions
// (construction with no TimerSource, and driving the pool via Kick/Tick
// before Init) panic with the string form of the sentinel wrapped by
// errors.WrapFatal, so the panic message carries the sentinel's text. The
// panic value is a string, not an error, and does not match with errors.Is.
var (
	ErrNoTimerSource = tmerrors.ErrNoTimerSource
	ErrNotThreaded   = tmerrors.ErrNotThreaded
)
