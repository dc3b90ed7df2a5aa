package monitoring

import (
	"context"
	"errors"
)

type fakeProbe struct {
	sys    SystemMetrics
	disk   DiskUsage
	memory MemoryUsage
	err    error
	calls  int
}

func (f *fakeProbe) System(context.Context) (SystemMetrics, error) {
	f.calls++
	return f.sys, f.err
}

func (f *fakeProbe) Disk(context.Context) (DiskUsage, error) {
	if f.err != nil {
		return DiskUsage{}, f.err
	}
	return f.disk, nil
}

func (f *fakeProbe) Memory(context.Context) (MemoryUsage, error) {
	if f.err != nil {
		return MemoryUsage{}, f.err
	}
	return f.memory, nil
}

var errProbe = errors.New("probe unavailable")
