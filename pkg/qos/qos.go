package qos

import (
	"errors"
	"fmt"

	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/object"
)

// QoS attribute IDs.
const (
	AttrTagEnable      uint16 = 1
	AttrDSCPPTPEvent   uint16 = 2
	AttrDSCPPTPGeneral uint16 = 3
	AttrDSCPUrgent     uint16 = 4
	AttrDSCPScheduled  uint16 = 5
	AttrDSCPHigh       uint16 = 6
	AttrDSCPLow        uint16 = 7
	AttrDSCPExplicit   uint16 = 8
)

// ClassRevision is the revision of the QoS object.
const ClassRevision uint16 = 1

// MaxDSCP is the largest valid DSCP value (6 bits).
const MaxDSCP uint8 = 63

// ErrInvalidValue is returned for out-of-range QoS values.
var ErrInvalidValue = errors.New("invalid qos value")

// Values is one complete set of QoS attribute values.
type Values struct {
	TagEnable      uint8 `cbor:"1,keyasint" yaml:"tagEnable"`
	DSCPPTPEvent   uint8 `cbor:"2,keyasint" yaml:"dscpPtpEvent"`
	DSCPPTPGeneral uint8 `cbor:"3,keyasint" yaml:"dscpPtpGeneral"`
	DSCPUrgent     uint8 `cbor:"4,keyasint" yaml:"dscpUrgent"`
	DSCPScheduled  uint8 `cbor:"5,keyasint" yaml:"dscpScheduled"`
	DSCPHigh       uint8 `cbor:"6,keyasint" yaml:"dscpHigh"`
	DSCPLow        uint8 `cbor:"7,keyasint" yaml:"dscpLow"`
	DSCPExplicit   uint8 `cbor:"8,keyasint" yaml:"dscpExplicit"`
}

// Defaults returns the factory default QoS values.
func Defaults() Values {
	return Values{
		TagEnable:      0,
		DSCPPTPEvent:   59,
		DSCPPTPGeneral: 47,
		DSCPUrgent:     55,
		DSCPScheduled:  47,
		DSCPHigh:       43,
		DSCPLow:        31,
		DSCPExplicit:   27,
	}
}

// Validate checks every value against its range.
func (v Values) Validate() error {
	if v.TagEnable > 1 {
		return fmt.Errorf("%w: tag enable %d", ErrInvalidValue, v.TagEnable)
	}
	for _, d := range []uint8{
		v.DSCPPTPEvent, v.DSCPPTPGeneral, v.DSCPUrgent, v.DSCPScheduled,
		v.DSCPHigh, v.DSCPLow, v.DSCPExplicit,
	} {
		if d > MaxDSCP {
			return fmt.Errorf("%w: dscp %d", ErrInvalidValue, d)
		}
	}
	return nil
}

// Object is the QoS object with its single instance.
type Object struct {
	*object.Class

	set  Values
	used Values
}

// New creates the QoS object with factory defaults in both value sets.
func New() *Object {
	o := &Object{
		Class: object.NewClass(cip.ClassQoS, ClassRevision),
		set:   Defaults(),
		used:  Defaults(),
	}
	inst, _ := o.AddInstance(1)

	_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
		ID:          AttrTagEnable,
		Name:        "802.1QTagEnable",
		Flags:       object.FlagGetSetNv,
		Description: "Enables 802.1Q frame tagging",
	}, limited(&o.set.TagEnable, 1)))

	dscp := []struct {
		id   uint16
		name string
		p    *uint8
	}{
		{AttrDSCPPTPEvent, "DSCPPTPEvent", &o.set.DSCPPTPEvent},
		{AttrDSCPPTPGeneral, "DSCPPTPGeneral", &o.set.DSCPPTPGeneral},
		{AttrDSCPUrgent, "DSCPUrgent", &o.set.DSCPUrgent},
		{AttrDSCPScheduled, "DSCPScheduled", &o.set.DSCPScheduled},
		{AttrDSCPHigh, "DSCPHigh", &o.set.DSCPHigh},
		{AttrDSCPLow, "DSCPLow", &o.set.DSCPLow},
		{AttrDSCPExplicit, "DSCPExplicit", &o.set.DSCPExplicit},
	}
	for _, d := range dscp {
		_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
			ID:    d.id,
			Name:  d.name,
			Flags: object.FlagGetSetNv,
		}, limited(d.p, MaxDSCP)))
	}

	return o
}

// Values returns the set values.
func (o *Object) Values() Values {
	return o.set
}

// Used returns the values currently applied to traffic.
func (o *Object) Used() Values {
	return o.used
}

// UpdateUsedSetValues makes the set values active.
func (o *Object) UpdateUsedSetValues() {
	o.used = o.set
}

// ResetToDefaults restores the factory defaults into the set values.
// The used values are unchanged until UpdateUsedSetValues.
func (o *Object) ResetToDefaults() {
	o.set = Defaults()
}

// Restore loads previously persisted set values.
func (o *Object) Restore(v Values) error {
	if err := v.Validate(); err != nil {
		return err
	}
	o.set = v
	return nil
}

// limited binds a USINT that must not exceed limit.
func limited(p *uint8, limit uint8) object.Binding {
	inner := object.Uint8(p)
	return object.FuncBinding{
		EncodeFunc: inner.Encode,
		DecodeFunc: func(data []byte) error {
			if len(data) == 1 && data[0] > limit {
				return cip.Err(cip.StatusInvalidAttributeValue)
			}
			return inner.Decode(data)
		},
	}
}
