package tapo

import "context"

// Session is what the rest of the program needs from a connected hub.
// Client and FakeSession both implement it.
type Session interface {
	ChildDevices(ctx context.Context) ([]ChildDevice, error)
	DeviceInfo(ctx context.Context) (DeviceInfo, error)
	Close() error
}
