// Package constants defines compile-time limits and defaults for fetchq.
package constants

const (
	// MaxPath is the maximum request path length in bytes. Paths must be
	// strictly shorter than this.
	MaxPath = 1024

	// MaxUserdataUint64 is the per-request user-data capacity in 8-byte
	// units. User data is stored 8-byte aligned inside the request slot.
	MaxUserdataUint64 = 16

	// MaxUserdataBytes is the per-request user-data capacity in bytes.
	MaxUserdataBytes = MaxUserdataUint64 * 8

	// MaxChannels is the upper bound on concurrently configured channels.
	MaxChannels = 16

	// MaxRequests is the hard pool-size ceiling. Slot indices are 16 bit
	// and index 0 is reserved as the invalid sentinel.
	MaxRequests = (1 << 16) - 2

	// DefaultMaxRequests is the pool capacity used when the config leaves
	// MaxRequests at zero.
	DefaultMaxRequests = 128

	// DefaultNumChannels is the channel count used when the config leaves
	// NumChannels at zero.
	DefaultNumChannels = 1

	// DefaultNumLanes is the per-channel lane count used when the config
	// leaves NumLanes at zero.
	DefaultNumLanes = 1

	// InvalidLane marks a request that has not been assigned a lane yet.
	InvalidLane = -1
)
