// Package config provides configuration loading for the IM bridge.
//
// Configuration is read from a YAML file, merged over hardcoded defaults,
// and finally overridden by IMBRIDGE_* environment variables. The loaded
// Config is validated before use; an invalid configuration fails startup
// rather than producing surprising runtime behaviour.
//
// Secrets (platform tokens, broker credentials, InfluxDB token) should be
// supplied through environment variables rather than committed to the
// config file.
package config
