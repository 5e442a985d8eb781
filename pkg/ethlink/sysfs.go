package ethlink

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultSysfsRoot is where Linux exposes network interfaces.
const DefaultSysfsRoot = "/sys/class/net"

// statistics file feeding each counter slot; empty means not available.
var (
	sysfsInterface = [InterfaceCounterCount]string{
		InOctets:         "rx_bytes",
		InUcastPackets:   "rx_packets",
		InNUcastPackets:  "multicast",
		InDiscards:       "rx_dropped",
		InErrors:         "rx_errors",
		InUnknownProtos:  "",
		OutOctets:        "tx_bytes",
		OutUcastPackets:  "tx_packets",
		OutNUcastPackets: "",
		OutDiscards:      "tx_dropped",
		OutErrors:        "tx_errors",
	}
	sysfsMedia = [MediaCounterCount]string{
		AlignmentErrors:       "rx_frame_errors",
		FCSErrors:             "rx_crc_errors",
		SingleCollisions:      "collisions",
		MultipleCollisions:    "",
		SQETestErrors:         "",
		DeferredTransmissions: "",
		LateCollisions:        "tx_window_errors",
		ExcessiveCollisions:   "tx_aborted_errors",
		MACTransmitErrors:     "tx_fifo_errors",
		CarrierSenseErrors:    "tx_carrier_errors",
		FrameTooLong:          "rx_length_errors",
		MACReceiveErrors:      "rx_fifo_errors",
	}
)

// SysfsCounters reads counters of Linux network interfaces. The kernel
// counters cannot be reset, so Clear records a baseline that later reads
// are reported against.
type SysfsCounters struct {
	root       string
	interfaces []string
	baseline   map[int]*rawCounters
}

type rawCounters struct {
	iface [InterfaceCounterCount]uint64
	media [MediaCounterCount]uint64
}

var _ CounterSource = (*SysfsCounters)(nil)

// NewSysfsCounters maps interfaces to ports 1..len(interfaces). An empty
// root selects DefaultSysfsRoot.
func NewSysfsCounters(root string, interfaces ...string) *SysfsCounters {
	if root == "" {
		root = DefaultSysfsRoot
	}
	return &SysfsCounters{
		root:       root,
		interfaces: interfaces,
		baseline:   make(map[int]*rawCounters),
	}
}

// Counters implements CounterSource.
func (s *SysfsCounters) Counters(port int) (Counters, error) {
	raw, err := s.read(port)
	if err != nil {
		return Counters{}, err
	}
	base := s.baseline[port]
	if base == nil {
		base = &rawCounters{}
	}

	var c Counters
	for i := range c.Interface {
		c.Interface[i] = uint32(raw.iface[i] - base.iface[i])
	}
	for i := range c.Media {
		c.Media[i] = uint32(raw.media[i] - base.media[i])
	}
	return c, nil
}

// Clear implements CounterSource.
func (s *SysfsCounters) Clear(port int, group Group) error {
	raw, err := s.read(port)
	if err != nil {
		return err
	}
	base := s.baseline[port]
	if base == nil {
		base = &rawCounters{}
		s.baseline[port] = base
	}
	switch group {
	case GroupInterface:
		base.iface = raw.iface
	case GroupMedia:
		base.media = raw.media
	}
	return nil
}

func (s *SysfsCounters) read(port int) (*rawCounters, error) {
	if port < 1 || port > len(s.interfaces) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPort, port)
	}
	dir := filepath.Join(s.root, s.interfaces[port-1], "statistics")
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("interface %s: %w", s.interfaces[port-1], err)
	}

	raw := &rawCounters{}
	for i, name := range sysfsInterface {
		raw.iface[i] = readStat(dir, name)
	}
	for i, name := range sysfsMedia {
		raw.media[i] = readStat(dir, name)
	}
	return raw, nil
}

// readStat returns 0 for missing or unparsable files.
func readStat(dir, name string) uint64 {
	if name == "" {
		return 0
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return 0
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
