package config

import (
	"fmt"
	"strings"
)

const (
	// ProdDbId is the identifier for the production database
	ProdDbId = "old-cloud"

	// SessionHeader carries the client session id on guarded HTTP routes.
	SessionHeader = "X-Session-Id"
)

// CheckNotProdDB fails if cfg points at the production database.
// Call it at the start of any test that talks to a configured database.
func CheckNotProdDB(cfg *Config) error {
	if cfg == nil || cfg.DatabaseURL == "" {
		return fmt.Errorf("DatabaseURL is not configured")
	}
	if strings.Contains(cfg.DatabaseURL, ProdDbId) {
		return fmt.Errorf("DatabaseURL contains production identifier %s", ProdDbId)
	}
	return nil
}
