package app

import (
	"github.com/gekko3d/pbrsky/skyrt/rt/core"
)

// Logger is the subset of the engine logger the renderer writes to. The engine
// logger embeds it.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger drops everything. It is the renderer's logger when Options has none.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

type Options struct {
	// NumBounces is the number of scattering orders. The compositor samples the
	// multiple scattering table, so anything below 2 fails Build.
	NumBounces int
	Policy     core.RecomputePolicy
	Logger     Logger
}

func DefaultOptions() Options {
	return Options{
		NumBounces: 2,
		Policy:     core.RecomputeOnChange,
	}
}
