package cip

import (
	"errors"
	"fmt"
)

// Status is a CIP general status code.
type Status uint8

const (
	StatusSuccess                Status = 0x00
	StatusConnectionFailure      Status = 0x01
	StatusPathSegmentError       Status = 0x04
	StatusPathDestinationUnknown Status = 0x05
	StatusServiceNotSupported    Status = 0x08
	StatusInvalidAttributeValue  Status = 0x09
	StatusAttributeNotSettable   Status = 0x0E
	StatusDeviceStateConflict    Status = 0x10
	StatusNotEnoughData          Status = 0x13
	StatusAttributeNotSupported  Status = 0x14
	StatusTooMuchData            Status = 0x15
	StatusObjectDoesNotExist     Status = 0x16
	StatusInvalidParameter       Status = 0x20
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusConnectionFailure:
		return "CONNECTION_FAILURE"
	case StatusPathSegmentError:
		return "PATH_SEGMENT_ERROR"
	case StatusPathDestinationUnknown:
		return "PATH_DESTINATION_UNKNOWN"
	case StatusServiceNotSupported:
		return "SERVICE_NOT_SUPPORTED"
	case StatusInvalidAttributeValue:
		return "INVALID_ATTRIBUTE_VALUE"
	case StatusAttributeNotSettable:
		return "ATTRIBUTE_NOT_SETTABLE"
	case StatusDeviceStateConflict:
		return "DEVICE_STATE_CONFLICT"
	case StatusNotEnoughData:
		return "NOT_ENOUGH_DATA"
	case StatusAttributeNotSupported:
		return "ATTRIBUTE_NOT_SUPPORTED"
	case StatusTooMuchData:
		return "TOO_MUCH_DATA"
	case StatusObjectDoesNotExist:
		return "OBJECT_DOES_NOT_EXIST"
	case StatusInvalidParameter:
		return "INVALID_PARAMETER"
	default:
		return fmt.Sprintf("STATUS(0x%02X)", uint8(s))
	}
}

// Connection manager extended status codes (general status 0x01).
const (
	ExtOwnershipConflict         uint16 = 0x0106
	ExtInvalidConfigurationSize  uint16 = 0x0109
	ExtInconsistentPath          uint16 = 0x0111
	ExtNonListenOnlyNotOpened    uint16 = 0x0119
	ExtInvalidConsumingSize      uint16 = 0x0127
	ExtInvalidConnectionPoint    uint16 = 0x012A
	ExtInvalidConfigurationData  uint16 = 0x0117
	ExtConnectionNotFound        uint16 = 0x0107
	ExtVendorSpecificApplication uint16 = 0x0800
)

// StatusError carries a non-success CIP status out of a service call.
type StatusError struct {
	Status   Status
	Extended uint16
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Extended != 0 {
		return fmt.Sprintf("cip status %s (0x%02X), extended 0x%04X", e.Status, uint8(e.Status), e.Extended)
	}
	return fmt.Sprintf("cip status %s (0x%02X)", e.Status, uint8(e.Status))
}

// Is matches another *StatusError with the same general and extended status.
// A target with Extended == 0 matches any extended status.
func (e *StatusError) Is(target error) bool {
	t, ok := target.(*StatusError)
	if !ok {
		return false
	}
	if t.Status != e.Status {
		return false
	}
	return t.Extended == 0 || t.Extended == e.Extended
}

// Err returns a *StatusError for s, or nil when s is StatusSuccess.
func Err(s Status) error {
	if s == StatusSuccess {
		return nil
	}
	return &StatusError{Status: s}
}

// ConnErr returns a connection failure error with the given extended status.
func ConnErr(extended uint16) error {
	return &StatusError{Status: StatusConnectionFailure, Extended: extended}
}

// StatusOf extracts the CIP general status from err. Non-CIP errors map to
// StatusDeviceStateConflict, nil maps to StatusSuccess.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusDeviceStateConflict
}
