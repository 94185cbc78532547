package driver

import "errors"

// Protocol errors, derived from status bits at observation time. A
// register write never returns one of these; pokes are fire-and-forget.
var (
	// ErrARPTimeout reports exhaustion of the hardware's own retry
	// budget (arp_tryings) without a reply.
	ErrARPTimeout = errors.New("uoe: arp resolution timed out")

	// ErrARPIPConflict reports another station claiming the local IP.
	ErrARPIPConflict = errors.New("uoe: local ip address conflict")

	// ErrARPMACConflict reports a MAC mismatch for a known IP.
	ErrARPMACConflict = errors.New("uoe: arp mac address conflict")

	// ErrGenTimeout reports an unreachable generator destination.
	ErrGenTimeout = errors.New("uoe: generator destination timeout")

	// ErrChkFrameSize reports a received frame size mismatch.
	ErrChkFrameSize = errors.New("uoe: checker frame size mismatch")

	// ErrChkData reports a payload content mismatch.
	ErrChkData = errors.New("uoe: checker payload mismatch")

	// ErrChkTimeout reports that the checker saw no traffic in time.
	ErrChkTimeout = errors.New("uoe: checker timed out")
)

// Driver-side errors.
var (
	// ErrAccessMode reports a write to a field software may not write.
	ErrAccessMode = errors.New("uoe: field access mode violation")

	// ErrUnstableCounter reports a split 64-bit counter that kept
	// wrapping across its msb boundary during the read retries.
	ErrUnstableCounter = errors.New("uoe: split counter read did not stabilize")
)
