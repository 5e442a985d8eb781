package tcpip

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/object"
)

// TCP/IP Interface attribute IDs.
const (
	AttrStatus                         uint16 = 1
	AttrCapability                     uint16 = 2
	AttrConfigControl                  uint16 = 3
	AttrHostName                       uint16 = 6
	AttrTTLValue                       uint16 = 8
	AttrEncapsulationInactivityTimeout uint16 = 13
)

// ClassRevision is the revision of the TCP/IP Interface object.
const ClassRevision uint16 = 4

const (
	// DefaultEncapsulationInactivityTimeout is the factory timeout in seconds.
	DefaultEncapsulationInactivityTimeout uint16 = 120

	// MaxEncapsulationInactivityTimeout is the largest accepted timeout.
	MaxEncapsulationInactivityTimeout uint16 = 3600

	// MaxHostNameLen is the longest accepted host name.
	MaxHostNameLen = 64
)

// Status bits (attribute 1).
const (
	StatusConfigured uint32 = 0x01
)

// Capability bits (attribute 2).
const (
	CapabilityDHCPClient     uint32 = 0x04
	CapabilityConfigSettable uint32 = 0x10
	CapabilityACDCapable     uint32 = 0x80
	DefaultCapability               = CapabilityDHCPClient | CapabilityConfigSettable
)

// ConfigMethod is the low nibble of the configuration control attribute.
type ConfigMethod uint32

const (
	ConfigStatic ConfigMethod = 0
	ConfigBOOTP  ConfigMethod = 1
	ConfigDHCP   ConfigMethod = 2
)

// configDNSEnable is the only flag allowed beside the method.
const configDNSEnable uint32 = 0x10

// ErrInvalidValue is returned for out-of-range TCP/IP values.
var ErrInvalidValue = errors.New("invalid tcp/ip value")

// Values holds the non-volatile attributes.
type Values struct {
	ConfigControl                  uint32 `cbor:"1,keyasint"`
	HostName                       string `cbor:"2,keyasint"`
	TTLValue                       uint8  `cbor:"3,keyasint"`
	EncapsulationInactivityTimeout uint16 `cbor:"4,keyasint"`
}

// Defaults returns the factory default values.
func Defaults() Values {
	return Values{
		ConfigControl:                  uint32(ConfigStatic),
		TTLValue:                       1,
		EncapsulationInactivityTimeout: DefaultEncapsulationInactivityTimeout,
	}
}

// Validate checks every value against its range.
func (v Values) Validate() error {
	if err := validateConfigControl(v.ConfigControl); err != nil {
		return err
	}
	if len(v.HostName) > MaxHostNameLen {
		return fmt.Errorf("%w: host name longer than %d", ErrInvalidValue, MaxHostNameLen)
	}
	if v.TTLValue == 0 {
		return fmt.Errorf("%w: ttl 0", ErrInvalidValue)
	}
	if v.EncapsulationInactivityTimeout > MaxEncapsulationInactivityTimeout {
		return fmt.Errorf("%w: encapsulation inactivity timeout %d", ErrInvalidValue, v.EncapsulationInactivityTimeout)
	}
	return nil
}

func validateConfigControl(c uint32) error {
	if ConfigMethod(c&0x0F) > ConfigDHCP || c&^(0x0F|configDNSEnable) != 0 {
		return fmt.Errorf("%w: configuration control 0x%X", ErrInvalidValue, c)
	}
	return nil
}

// Object is the TCP/IP Interface object with its single instance.
type Object struct {
	*object.Class

	status     uint32
	capability uint32
	values     Values
}

// New creates the TCP/IP Interface object with factory defaults.
func New() *Object {
	o := &Object{
		Class:      object.NewClass(cip.ClassTCPIPInterface, ClassRevision),
		status:     StatusConfigured,
		capability: DefaultCapability,
		values:     Defaults(),
	}
	inst, _ := o.AddInstance(1)

	_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
		ID: AttrStatus, Name: "Status", Flags: object.FlagGetable,
	}, object.Uint32(&o.status)))
	_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
		ID: AttrCapability, Name: "ConfigurationCapability", Flags: object.FlagGetable,
	}, object.Uint32(&o.capability)))
	_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
		ID: AttrConfigControl, Name: "ConfigurationControl", Flags: object.FlagGetSetNv,
	}, object.FuncBinding{
		EncodeFunc: object.Uint32(&o.values.ConfigControl).Encode,
		DecodeFunc: func(data []byte) error {
			if len(data) == 4 {
				if err := validateConfigControl(binary.LittleEndian.Uint32(data)); err != nil {
					return cip.Err(cip.StatusInvalidAttributeValue)
				}
			}
			return object.Uint32(&o.values.ConfigControl).Decode(data)
		},
	}))
	_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
		ID: AttrHostName, Name: "HostName", Flags: object.FlagGetSetNv,
	}, object.String(&o.values.HostName, MaxHostNameLen)))
	_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
		ID: AttrTTLValue, Name: "TTLValue", Flags: object.FlagGetSetNv,
	}, object.FuncBinding{
		EncodeFunc: object.Uint8(&o.values.TTLValue).Encode,
		DecodeFunc: func(data []byte) error {
			if len(data) == 1 && data[0] == 0 {
				return cip.Err(cip.StatusInvalidAttributeValue)
			}
			return object.Uint8(&o.values.TTLValue).Decode(data)
		},
	}))
	_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
		ID:          AttrEncapsulationInactivityTimeout,
		Name:        "EncapsulationInactivityTimeout",
		Flags:       object.FlagGetSetNv,
		Description: "Seconds of inactivity before an idle TCP session is closed; 0 disables",
	}, object.FuncBinding{
		EncodeFunc: object.Uint16(&o.values.EncapsulationInactivityTimeout).Encode,
		DecodeFunc: func(data []byte) error {
			if len(data) == 2 && binary.LittleEndian.Uint16(data) > MaxEncapsulationInactivityTimeout {
				return cip.Err(cip.StatusInvalidAttributeValue)
			}
			return object.Uint16(&o.values.EncapsulationInactivityTimeout).Decode(data)
		},
	}))

	return o
}

// Values returns the non-volatile attribute values.
func (o *Object) Values() Values {
	return o.values
}

// Restore loads previously persisted values.
func (o *Object) Restore(v Values) error {
	if err := v.Validate(); err != nil {
		return err
	}
	o.values = v
	return nil
}

// EncapsulationInactivityTimeout returns the timeout in seconds.
func (o *Object) EncapsulationInactivityTimeout() uint16 {
	return o.values.EncapsulationInactivityTimeout
}

// SetEncapsulationInactivityTimeout sets the timeout in seconds.
func (o *Object) SetEncapsulationInactivityTimeout(seconds uint16) error {
	if seconds > MaxEncapsulationInactivityTimeout {
		return fmt.Errorf("%w: encapsulation inactivity timeout %d", ErrInvalidValue, seconds)
	}
	o.values.EncapsulationInactivityTimeout = seconds
	return nil
}

// ResetToDefaults restores every non-volatile attribute to its factory value.
func (o *Object) ResetToDefaults() {
	o.values = Defaults()
}
