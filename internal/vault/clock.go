package vault

import "time"

// Clock supplies the logical time, in seconds, that checkpoints are taken
// against. It is injected so tests can drive arbitrary elapsed periods,
// including zero.
type Clock interface {
	Now() uint64
}

type systemClock struct{}

func (systemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// SystemClock returns a clock backed by wall time in whole seconds.
func SystemClock() Clock {
	return systemClock{}
}
