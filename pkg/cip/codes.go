package cip

import "fmt"

// ClassCode identifies a CIP object class.
type ClassCode uint16

// Object classes used by the adapter.
const (
	ClassIdentity          ClassCode = 0x01
	ClassMessageRouter     ClassCode = 0x02
	ClassAssembly          ClassCode = 0x04
	ClassConnectionManager ClassCode = 0x06
	ClassQoS               ClassCode = 0x48
	ClassTCPIPInterface    ClassCode = 0xF5
	ClassEthernetLink      ClassCode = 0xF6
)

// String returns the class name.
func (c ClassCode) String() string {
	switch c {
	case ClassIdentity:
		return "Identity"
	case ClassMessageRouter:
		return "MessageRouter"
	case ClassAssembly:
		return "Assembly"
	case ClassConnectionManager:
		return "ConnectionManager"
	case ClassQoS:
		return "QoS"
	case ClassTCPIPInterface:
		return "TCPIPInterface"
	case ClassEthernetLink:
		return "EthernetLink"
	default:
		return fmt.Sprintf("Class(0x%02X)", uint16(c))
	}
}

// Service is a CIP service code.
type Service uint8

// Services handled by the object dictionary.
const (
	ServiceGetAttributeAll    Service = 0x01
	ServiceReset              Service = 0x05
	ServiceGetAttributeSingle Service = 0x0E
	ServiceSetAttributeSingle Service = 0x10

	// ServiceGetAndClear is class specific to the Ethernet Link object.
	ServiceGetAndClear Service = 0x4C
)

// String returns the service name.
func (s Service) String() string {
	switch s {
	case ServiceGetAttributeAll:
		return "GetAttributeAll"
	case ServiceReset:
		return "Reset"
	case ServiceGetAttributeSingle:
		return "GetAttributeSingle"
	case ServiceSetAttributeSingle:
		return "SetAttributeSingle"
	case ServiceGetAndClear:
		return "GetAndClear"
	default:
		return fmt.Sprintf("Service(0x%02X)", uint8(s))
	}
}

// IsSet reports whether the service modifies attribute data.
func (s Service) IsSet() bool {
	return s == ServiceSetAttributeSingle
}

// ResetType is the parameter of the Identity object's Reset service.
type ResetType uint8

const (
	// ResetPowerCycle emulates a power cycle (ResetDevice).
	ResetPowerCycle ResetType = 0

	// ResetFactoryDefaults returns to the out-of-box configuration and then
	// emulates a power cycle.
	ResetFactoryDefaults ResetType = 1
)

// String returns the reset type name.
func (r ResetType) String() string {
	switch r {
	case ResetPowerCycle:
		return "POWER_CYCLE"
	case ResetFactoryDefaults:
		return "FACTORY_DEFAULTS"
	default:
		return "UNKNOWN"
	}
}
