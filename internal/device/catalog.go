package device

import (
	"fmt"
	"sort"
	"strings"
)

// Catalog is the static lookup table of supported devices.
//
// It is built once at startup from the configured allow-list; each ID is
// classified into manufacturer and type at that point, so the rest of the
// system never derives device attributes from ID substrings at request
// time. The Catalog is immutable after construction and therefore safe
// for concurrent use without locking.
type Catalog struct {
	devices map[string]Device
	ids     []string // sorted, for stable error messages
}

// NewCatalog builds a Catalog from the supported-device allow-list.
//
// Parameters:
//   - supported: Device IDs from configuration
//
// Returns:
//   - *Catalog: Immutable lookup table
//   - error: If the list is empty, contains duplicates, or an ID cannot
//     be classified
func NewCatalog(supported []string) (*Catalog, error) {
	if len(supported) == 0 {
		return nil, fmt.Errorf("%w: empty allow-list", ErrInvalidDevice)
	}

	devices := make(map[string]Device, len(supported))
	ids := make([]string, 0, len(supported))

	for _, id := range supported {
		if _, exists := devices[id]; exists {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidDevice, id)
		}

		dev, err := classify(id)
		if err != nil {
			return nil, err
		}

		devices[id] = dev
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return &Catalog{devices: devices, ids: ids}, nil
}

// Lookup resolves a device ID against the allow-list.
//
// Returns:
//   - Device: The resolved device
//   - error: ErrDeviceNotSupported if the ID is not in the allow-list
func (c *Catalog) Lookup(id string) (Device, error) {
	dev, ok := c.devices[id]
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrDeviceNotSupported, id)
	}
	return dev, nil
}

// Has reports whether a device ID is in the allow-list.
func (c *Catalog) Has(id string) bool {
	_, ok := c.devices[id]
	return ok
}

// SupportedIDs returns the allow-list sorted lexically.
// The returned slice is a copy; callers may modify it.
func (c *Catalog) SupportedIDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Count returns the number of supported devices.
func (c *Catalog) Count() int {
	return len(c.devices)
}

// classify derives manufacturer and type from a device ID.
//
// This is the single place ID naming conventions are interpreted;
// it runs only while the Catalog is built.
func classify(id string) (Device, error) {
	if id == "" {
		return Device{}, fmt.Errorf("%w: empty id", ErrInvalidDevice)
	}

	var man Manufacturer
	switch {
	case strings.Contains(id, "raspberrypi"):
		man = ManufacturerRaspberryPi
	case strings.Contains(id, "esp32"):
		man = ManufacturerESP32
	default:
		return Device{}, fmt.Errorf("%w: cannot determine manufacturer for %q", ErrInvalidDevice, id)
	}

	var typ Type
	switch {
	case strings.Contains(id, "light"):
		typ = TypeLight
	case strings.Contains(id, "fan"):
		typ = TypeFan
	default:
		return Device{}, fmt.Errorf("%w: cannot determine type for %q", ErrInvalidDevice, id)
	}

	return Device{ID: id, Manufacturer: man, Type: typ}, nil
}
