package object

import "github.com/eipdev/eipdev-go/pkg/cip"

// CallbackKind selects which class callback slot is addressed.
type CallbackKind uint8

const (
	PreGet CallbackKind = iota + 1
	PostGet
	PreSet
	PostSet
	NvData
)

// String returns the callback kind name.
func (k CallbackKind) String() string {
	switch k {
	case PreGet:
		return "PreGet"
	case PostGet:
		return "PostGet"
	case PreSet:
		return "PreSet"
	case PostSet:
		return "PostSet"
	case NvData:
		return "NvData"
	default:
		return "Unknown"
	}
}

// Flag returns the attribute flag that enables this callback kind.
func (k CallbackKind) Flag() Flags {
	switch k {
	case PreGet:
		return FlagPreGet
	case PostGet:
		return FlagPostGet
	case PreSet:
		return FlagPreSet
	case PostSet:
		return FlagPostSet
	case NvData:
		return FlagNvData
	default:
		return 0
	}
}

// Callback is invoked around a service on a flagged attribute.
// Returning a *cip.StatusError selects the reply status; any other error is
// reported with a status chosen by the service.
type Callback func(inst *Instance, attr *Attribute, service cip.Service) error
