package assembly

// Direction classifies what an assembly instance is used for.
type Direction uint8

const (
	// DirectionInput is produced by the device (T->O).
	DirectionInput Direction = iota + 1

	// DirectionOutput is consumed by the device (O->T).
	DirectionOutput

	// DirectionConfig carries configuration data sent with Forward Open.
	DirectionConfig

	// DirectionHeartbeatInputOnly is the zero-size output of input-only connections.
	DirectionHeartbeatInputOnly

	// DirectionHeartbeatListenOnly is the zero-size output of listen-only connections.
	DirectionHeartbeatListenOnly

	// DirectionExplicit is only reachable through explicit messaging.
	DirectionExplicit
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "INPUT"
	case DirectionOutput:
		return "OUTPUT"
	case DirectionConfig:
		return "CONFIG"
	case DirectionHeartbeatInputOnly:
		return "HEARTBEAT_INPUT_ONLY"
	case DirectionHeartbeatListenOnly:
		return "HEARTBEAT_LISTEN_ONLY"
	case DirectionExplicit:
		return "EXPLICIT"
	default:
		return "UNKNOWN"
	}
}

// IsHeartbeat reports whether the direction is one of the heartbeat kinds.
func (d Direction) IsHeartbeat() bool {
	return d == DirectionHeartbeatInputOnly || d == DirectionHeartbeatListenOnly
}
