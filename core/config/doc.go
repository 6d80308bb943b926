// Package config provides configuration management for the Lockcode Manager.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file. Defaults live next to each section in
// `default` struct tags and are registered by reflection.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP port and API key
//   - Database: MySQL (or SQLite) connection details
//   - Storage: S3/MinIO credentials for the failure log mirror
//   - Redis: lease backend address
//   - Devices / Reservations: vendor API endpoints and credentials
//   - Sync: engine timings, lease TTLs and failure log settings
//   - Log: Logging level and format
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Sync.StuckTimeoutMinutes)
package config
