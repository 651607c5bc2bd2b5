package backend

import (
	"fmt"
	"time"

	"finboard/internal/config"
	gsheet "finboard/internal/sheets/google"
)

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// API specific
	UpstreamBaseURL string
	UpstreamTimeout time.Duration

	// Google Sheets specific
	Sheets gsheet.Config

	// Memory backend specific
	DataDirectory string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:            backendType,
		UpstreamBaseURL: appConfig.UpstreamBaseURL,
		UpstreamTimeout: appConfig.UpstreamTimeout,
		Sheets: gsheet.Config{
			SpreadsheetID:   appConfig.GoogleSpreadsheetID,
			SheetName:       appConfig.GoogleSheetName,
			CredentialsJSON: appConfig.GoogleServiceAccountJSON,
			CredentialsFile: appConfig.GoogleServiceAccountFile,
		},
		DataDirectory: appConfig.SeedDataDir,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case APIBackend:
		if c.UpstreamBaseURL == "" {
			return fmt.Errorf("upstream base URL is required for api backend")
		}
	case SheetsBackend:
		if c.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
		if c.Sheets.CredentialsJSON == "" && c.Sheets.CredentialsFile == "" {
			return fmt.Errorf("service account credentials are required for sheets backend")
		}
	case SQLiteBackend, MemoryBackend:
		// The local store is opened by the caller; the memory backend
		// defaults its data directory.
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{APIBackend, SQLiteBackend, SheetsBackend, MemoryBackend}
}
