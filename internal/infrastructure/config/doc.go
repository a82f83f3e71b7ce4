// Package config loads and validates the Snappy bridge configuration.
//
// Configuration comes from three layers, each overriding the last:
//
//  1. Hardcoded defaults
//  2. config.yaml
//  3. Environment variables
//
// The hub endpoint variables keep the names the original deployment
// exported (HUB_PROTOCOL, HUB_TARGET, HUB_PORT, HUB_PATH) so existing
// compose files keep working; everything else uses the SNAPPY_ prefix.
// Overrides are resolved once at Load time — no call site reads the
// environment afterwards.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	hubURL := cfg.HubURL() // ws://localhost:5001/snappy/hub
package config
