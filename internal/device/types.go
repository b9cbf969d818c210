package device

// Manufacturer identifies the device class an executor serves.
// Each manufacturer has its own control topic namespace so that a
// device class's executor only ever sees its own traffic.
type Manufacturer string

// Supported manufacturers.
const (
	ManufacturerESP32       Manufacturer = "esp32"
	ManufacturerRaspberryPi Manufacturer = "raspberrypi"
)

// Type classifies what kind of appliance a device is.
type Type string

// Supported device types.
const (
	TypeLight Type = "light"
	TypeFan   Type = "fan"
)

// Device identifies a controllable entity.
//
// Devices are not persisted: they are resolved from the Catalog per
// incoming request. Binding state lives in the binding registry and is
// re-derived on each lookup.
type Device struct {
	// ID is the globally unique device identifier
	// (e.g. "esp32_light_001"). IDs are validated against the
	// supported-device allow-list before any command executes.
	ID string

	// Manufacturer selects the control topic namespace.
	Manufacturer Manufacturer

	// Type is the appliance classification.
	Type Type
}
