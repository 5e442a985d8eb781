package log

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// FileMagic is the first field of every .eiplog header record.
const FileMagic = "EIPLOG"

// FormatVersion is the trace file format written by FileLogger.
const FormatVersion = 1

var (
	// ErrNotTraceFile is returned when a file does not start with a valid
	// header record.
	ErrNotTraceFile = errors.New("not an eiplog trace file")

	// ErrUnsupportedVersion is returned for files written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported trace file version")

	// ErrTruncated is returned when the last record of a file is incomplete,
	// as left behind by a device that stopped mid-write.
	ErrTruncated = errors.New("truncated trace record")
)

// Header is the first record of a trace file.
type Header struct {
	Magic   string    `cbor:"1,keyasint"`
	Version uint8     `cbor:"2,keyasint"`
	Created time.Time `cbor:"3,keyasint"`

	// Capture is the MaxDataCapture in effect when the file was created.
	Capture int `cbor:"4,keyasint"`
}

// Events are small, flat maps with integer keys. Timestamps keep nanosecond
// precision and carry the standard date/time tag so generic CBOR tools
// decode them as times. Records are never written with indefinite lengths,
// so the decoder refuses them along with duplicate keys.
var (
	traceEnc = mustEncMode(cbor.EncOptions{
		Sort:          cbor.SortCoreDeterministic,
		Time:          cbor.TimeRFC3339Nano,
		TimeTag:       cbor.EncTagRequired,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	})
	traceDec = mustDecMode(cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		IndefLength:     cbor.IndefLengthForbidden,
		MaxNestedLevels: 8,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	m, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace encoder options: %v", err))
	}
	return m
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	m, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("trace decoder options: %v", err))
	}
	return m
}

// EncodeEvent returns the record bytes of event.
func EncodeEvent(event Event) ([]byte, error) {
	return traceEnc.Marshal(event)
}

// DecodeEvent decodes one record.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := traceDec.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

func newHeader(now time.Time) Header {
	return Header{Magic: FileMagic, Version: FormatVersion, Created: now, Capture: MaxDataCapture}
}

func writeHeader(w io.Writer, h Header) error {
	rec, err := traceEnc.Marshal(h)
	if err != nil {
		return err
	}
	_, err = w.Write(rec)
	return err
}

// readHeader decodes and checks the header record at the start of dec.
func readHeader(dec *cbor.Decoder) (Header, error) {
	var h Header
	if err := dec.Decode(&h); err != nil {
		if errors.Is(err, io.EOF) {
			return Header{}, fmt.Errorf("%w: empty file", ErrNotTraceFile)
		}
		return Header{}, fmt.Errorf("%w: %v", ErrNotTraceFile, err)
	}
	if h.Magic != FileMagic {
		return Header{}, ErrNotTraceFile
	}
	if h.Version == 0 || h.Version > FormatVersion {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}
