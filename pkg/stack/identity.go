package stack

import (
	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/object"
)

// Identity attribute IDs.
const (
	AttrVendorID     uint16 = 1
	AttrDeviceType   uint16 = 2
	AttrProductCode  uint16 = 3
	AttrRevision     uint16 = 4
	AttrStatus       uint16 = 5
	AttrSerialNumber uint16 = 6
	AttrProductName  uint16 = 7
)

// Identity status bits.
const (
	identityStatusOwned      uint16 = 0x0001
	identityStatusConfigured uint16 = 0x0004
)

// Identity describes the device in the Identity object.
type Identity struct {
	VendorID      uint16
	DeviceType    uint16
	ProductCode   uint16
	MajorRevision uint8
	MinorRevision uint8
	SerialNumber  uint32
	ProductName   string
}

// DefaultIdentity is used when Config.Identity is empty.
var DefaultIdentity = Identity{
	VendorID:      1,
	DeviceType:    0x0C, // communications adapter
	ProductCode:   65001,
	MajorRevision: 1,
	MinorRevision: 0,
	SerialNumber:  0x00000001,
	ProductName:   "eipdev adapter",
}

// newIdentityClass creates the Identity object. status is evaluated on every
// read so ownership reflects the open connections.
func newIdentityClass(id *Identity, status func() uint16) *object.Class {
	c := object.NewClass(cip.ClassIdentity, 1)
	inst, _ := c.AddInstance(1)

	_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
		ID: AttrVendorID, Name: "VendorID", Flags: object.FlagGetable,
	}, object.Uint16(&id.VendorID)))
	_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
		ID: AttrDeviceType, Name: "DeviceType", Flags: object.FlagGetable,
	}, object.Uint16(&id.DeviceType)))
	_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
		ID: AttrProductCode, Name: "ProductCode", Flags: object.FlagGetable,
	}, object.Uint16(&id.ProductCode)))
	_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
		ID: AttrRevision, Name: "Revision", Flags: object.FlagGetable,
	}, object.FuncBinding{EncodeFunc: func() []byte {
		return []byte{id.MajorRevision, id.MinorRevision}
	}}))
	_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
		ID: AttrStatus, Name: "Status", Flags: object.FlagGetable,
	}, object.FuncBinding{EncodeFunc: func() []byte {
		s := status()
		return []byte{byte(s), byte(s >> 8)}
	}}))
	_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
		ID: AttrSerialNumber, Name: "SerialNumber", Flags: object.FlagGetable,
	}, object.Uint32(&id.SerialNumber)))
	_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
		ID: AttrProductName, Name: "ProductName", Flags: object.FlagGetable,
	}, object.FuncBinding{EncodeFunc: func() []byte {
		// SHORT_STRING: one length byte.
		name := id.ProductName
		if len(name) > 255 {
			name = name[:255]
		}
		return append([]byte{byte(len(name))}, name...)
	}}))

	return c
}
