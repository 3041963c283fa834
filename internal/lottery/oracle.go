package lottery

import "context"

// MembershipChecker reports whether the user currently belongs to the required
// channel. Implementations talk to a remote platform and must honor ctx.
type MembershipChecker interface {
	IsMember(ctx context.Context, telegramID int64) (bool, error)
}

// DeviceOracle reports whether the user's device was already seen on another
// account. The production fingerprinting backend is pluggable.
type DeviceOracle interface {
	SameDevice(ctx context.Context, telegramID int64) (bool, error)
}

// CodeSource yields candidate ticket codes. Draws need not be collision-free;
// the ledger retries until an unclaimed code is found.
type CodeSource interface {
	Code() string
}
