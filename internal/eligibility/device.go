package eligibility

import "context"

// StubDeviceOracle never flags a device. The real fingerprinting backend
// plugs in behind the same interface.
type StubDeviceOracle struct{}

func (StubDeviceOracle) SameDevice(_ context.Context, _ int64) (bool, error) {
	return false, nil
}
