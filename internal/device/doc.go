// Package device provides the static device catalog for the IM bridge.
//
// The catalog is the allow-list of controllable devices, built once at
// startup from configuration. Each device ID is classified into a
// manufacturer (which selects the control topic namespace and executor
// endpoint) and a device type. Lookups at request time are pure map
// reads against an immutable table.
//
// # Usage
//
//	catalog, err := device.NewCatalog(cfg.Devices.Supported)
//	if err != nil {
//	    return err
//	}
//	dev, err := catalog.Lookup("esp32_light_001")
package device
