package network

import "errors"

// Domain-specific errors for network bring-up.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAssociationTimeout is returned when the station does not associate in time.
	ErrAssociationTimeout = errors.New("network: association timed out")

	// ErrClockSyncTimeout is returned when the clock does not pass the epoch sentinel in time.
	ErrClockSyncTimeout = errors.New("network: clock sync timed out")

	// ErrNotAssociated is returned by SyncClock before a successful Associate.
	ErrNotAssociated = errors.New("network: not associated")

	// ErrChannelUnavailable is returned when the link is up but the driver
	// cannot report the negotiated channel. The association itself stands.
	ErrChannelUnavailable = errors.New("network: channel unavailable")

	// ErrRadio is returned when the driver rejects a command outright.
	ErrRadio = errors.New("network: radio driver error")
)
