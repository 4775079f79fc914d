package tapo

import "context"

// FakeSession is a test double for Session.
//
// Single-snapshot mode: pre-seed Devices; every ChildDevices call returns it.
// Sequence mode: pre-seed Sequence; each call returns the next element and
// the last one repeats once exhausted. Err fails every call; Errs fails
// only the call with the matching index (Errs[0] for the first call).
type FakeSession struct {
	Devices   []ChildDevice
	Sequence  [][]ChildDevice
	Err       error
	Errs      []error
	Info      DeviceInfo
	InfoErr   error
	CallCount int
	Closed    bool
}

// ChildDevices returns the pre-seeded devices for the current call index.
func (f *FakeSession) ChildDevices(ctx context.Context) ([]ChildDevice, error) {
	f.CallCount++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if idx := f.CallCount - 1; idx < len(f.Errs) && f.Errs[idx] != nil {
		return nil, f.Errs[idx]
	}

	src := f.Devices
	if len(f.Sequence) > 0 {
		idx := f.CallCount - 1
		if idx >= len(f.Sequence) {
			idx = len(f.Sequence) - 1
		}
		src = f.Sequence[idx]
	}

	out := make([]ChildDevice, len(src))
	copy(out, src)
	return out, nil
}

// DeviceInfo returns Info or InfoErr.
func (f *FakeSession) DeviceInfo(context.Context) (DeviceInfo, error) {
	if f.InfoErr != nil {
		return DeviceInfo{}, f.InfoErr
	}
	return f.Info, nil
}

// Close records that the session was closed.
func (f *FakeSession) Close() error {
	f.Closed = true
	return nil
}

// Reset clears all state so the fake can be reused between sub-tests.
func (f *FakeSession) Reset() {
	*f = FakeSession{}
}
