package app

import "github.com/eipdev/eipdev-go/pkg/assembly"

// Assembly instance ids.
const (
	InputID               uint16 = 100
	OutputID              uint16 = 150
	ConfigID              uint16 = 151
	HeartbeatInputOnlyID  uint16 = 152
	HeartbeatListenOnlyID uint16 = 153
	ExplicitID            uint16 = 154
)

// Assembly sizes in bytes.
const (
	InputSize    = 32
	OutputSize   = 32
	ConfigSize   = 10
	ExplicitSize = 32
)

// profileEntry is one assembly instance of the device profile.
type profileEntry struct {
	id   uint16
	dir  assembly.Direction
	size int
}

// profile lists the instances in registration order.
var profile = []profileEntry{
	{InputID, assembly.DirectionInput, InputSize},
	{OutputID, assembly.DirectionOutput, OutputSize},
	{ConfigID, assembly.DirectionConfig, ConfigSize},
	{HeartbeatInputOnlyID, assembly.DirectionHeartbeatInputOnly, 0},
	{HeartbeatListenOnlyID, assembly.DirectionHeartbeatListenOnly, 0},
	{ExplicitID, assembly.DirectionExplicit, ExplicitSize},
}
