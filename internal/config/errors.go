package config

const (
	// Database errors
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"
	ErrOpenStoreFmt          = "Failed to open store: %v"

	// Config errors
	ErrLoadConfigFmt         = "Failed to load config: %v"
	ErrWriteConfigContentFmt = "Failed to write config content: %v"

	// Import errors
	ErrImportFileFmt = "Failed to import %s: %v"
)
