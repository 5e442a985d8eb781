// Package config loads and saves the YAML configuration of the reference
// adapter.
//
// A missing file is not an error: Load returns the defaults, so a device
// starts with no configuration at all. Command-line flags of eip-device
// override individual values after loading.
//
//	scan:
//	  interval: 1ms
//	  default_rpi: 10ms
//	  timeout_multiplier: 4
//	failsafe:
//	  policy: pattern
//	  pattern: "00 ff 00 ff ..."
//	nv:
//	  dir: /var/lib/eip-device
package config
