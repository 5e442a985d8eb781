package connpoint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eipdev/eipdev-go/pkg/assembly"
)

// Wiring errors.
var (
	ErrUnknownAssemblyID = errors.New("unknown assembly id in connection point")
	ErrDirectionMismatch = errors.New("assembly direction does not fit connection point slot")
	ErrUnknownRole       = errors.New("unknown connection point role")
)

// Role is the connection type a point accepts.
type Role uint8

const (
	// RoleExclusiveOwner is bidirectional; one owner per output assembly.
	RoleExclusiveOwner Role = iota + 1

	// RoleInputOnly produces input data; the originator only sends heartbeats.
	RoleInputOnly

	// RoleListenOnly produces input data as long as a controlling connection exists.
	RoleListenOnly
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleExclusiveOwner:
		return "EXCLUSIVE_OWNER"
	case RoleInputOnly:
		return "INPUT_ONLY"
	case RoleListenOnly:
		return "LISTEN_ONLY"
	default:
		return "UNKNOWN"
	}
}

// ParseRole parses a role name. Both the String form and the lower case
// configuration form (exclusive_owner, eo) are accepted.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exclusive_owner", "eo":
		return RoleExclusiveOwner, nil
	case "input_only", "io":
		return RoleInputOnly, nil
	case "listen_only", "lo":
		return RoleListenOnly, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// outputDirection returns the direction the output slot must have for r.
func (r Role) outputDirection() assembly.Direction {
	switch r {
	case RoleInputOnly:
		return assembly.DirectionHeartbeatInputOnly
	case RoleListenOnly:
		return assembly.DirectionHeartbeatListenOnly
	default:
		return assembly.DirectionOutput
	}
}

// Point is a configured connection point.
type Point struct {
	Role Role

	// Index is the point number within its role.
	Index int

	OutputID uint16
	InputID  uint16
	ConfigID uint16
}

// String returns a compact description of the point.
func (p Point) String() string {
	return fmt.Sprintf("%s#%d(out=%d in=%d cfg=%d)", p.Role, p.Index, p.OutputID, p.InputID, p.ConfigID)
}

// Matches reports whether p serves the given assembly triple.
func (p Point) Matches(outputID, inputID, configID uint16) bool {
	return p.OutputID == outputID && p.InputID == inputID && p.ConfigID == configID
}
