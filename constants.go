package fetchq

import "github.com/Comanx/fetchq/internal/constants"

// Re-export compile-time limits for the public API.
const (
	// MaxPath is the maximum request path length; paths must be strictly
	// shorter.
	MaxPath = constants.MaxPath

	// MaxUserdataBytes is the per-request user-data capacity.
	MaxUserdataBytes = constants.MaxUserdataBytes

	// MaxChannels is the maximum number of channels per engine.
	MaxChannels = constants.MaxChannels

	// MaxPoolSize is the hard ceiling on Config.MaxRequests.
	MaxPoolSize = constants.MaxRequests

	// DefaultMaxRequests, DefaultNumChannels and DefaultNumLanes are the
	// values substituted for zero Config fields.
	DefaultMaxRequests = constants.DefaultMaxRequests
	DefaultNumChannels = constants.DefaultNumChannels
	DefaultNumLanes    = constants.DefaultNumLanes
)
