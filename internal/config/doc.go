// Package config loads application configuration, regulatory parameters and
// the validation registry.
//
// Configuration sources are applied in order, later ones winning:
//
//  1. built-in defaults (Default)
//  2. a YAML file, taken from REGLIQ_CONFIG_FILE or config.yaml / configs/config.yaml
//  3. REGLIQ_* environment variables, e.g. REGLIQ_SERVER_PORT=9090 or
//     REGLIQ_STORAGE_DSN=postgres://...
//
// Regulatory parameters default to the Basel III rates and can be overridden
// by the parameters section of the config file or by a separate parameters file.
package config
