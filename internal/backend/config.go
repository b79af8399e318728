package backend

import (
	"errors"
	"fmt"
	"strings"

	"lunchtools/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:        backendType,
		APIToken:    appConfig.APIToken,
		APIBaseURL:  appConfig.APIBaseURL,
		HTTPTimeout: appConfig.HTTPTimeout,
		SeedPath:    appConfig.MemorySeedPath,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == LunchMoneyBackend && strings.TrimSpace(c.APIToken) == "" {
		return errors.New("API token is required for lunchmoney backend")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{LunchMoneyBackend, MemoryBackend}
}
