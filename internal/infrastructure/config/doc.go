// Package config loads and validates pbexport configuration.
//
// Values are resolved in order: built-in defaults, the YAML file (if a path
// is given), then environment variables. Secrets such as the MQTT password
// and InfluxDB token should come from the environment.
//
// Usage:
//
//	cfg, err := config.Load(os.Getenv("PBEXPORT_CONFIG"))
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Export.OutputDir)
package config
