package errors

import "fmt"

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("failed to parse config")
	ErrConfigValidation  = fmt.Errorf("invalid configuration")
	ErrConfigEncode      = fmt.Errorf("failed to encode config")
	ErrConfigDirectory   = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate  = fmt.Errorf("failed to create config file")
	ErrConfigFileRename  = fmt.Errorf("failed to rename config file")
	ErrConfigFileExists  = fmt.Errorf("config file already exists")
	ErrConfigFormat      = fmt.Errorf("unsupported config format")

	// Settings validation errors.
	ErrHTTPTimeoutNegative  = fmt.Errorf("http timeout cannot be negative")
	ErrMaxConcurrentInvalid = fmt.Errorf("max concurrent fetches must be at least 1")
	ErrDeviceSDKInvalid     = fmt.Errorf("device sdk level cannot be negative")
	ErrInvalidABI           = fmt.Errorf("unknown device abi")
	ErrInvalidLogLevel      = fmt.Errorf("invalid log level")
	ErrInvalidBusyPolicy    = fmt.Errorf("invalid on_busy policy")
	ErrInvalidFingerprint   = fmt.Errorf("fingerprint must be hex encoded")

	// Repository errors.
	ErrRepositoryNotFound  = fmt.Errorf("repository not found")
	ErrRepositoryExists    = fmt.Errorf("repository already exists")
	ErrRepositoryNameEmpty = fmt.Errorf("repository name cannot be empty")
	ErrRepositoryURLEmpty  = fmt.Errorf("repository url cannot be empty")

	// Catalog errors.
	ErrAppNotFound = fmt.Errorf("application not found")

	// Fetch errors.
	ErrUnexpectedStatus = fmt.Errorf("unexpected status code")
	ErrDownloadFailed   = fmt.Errorf("download failed")
	ErrInvalidPath      = fmt.Errorf("invalid path")

	// Signature errors.
	ErrNoCertificate        = fmt.Errorf("no signing certificate found in index")
	ErrMultipleCertificates = fmt.Errorf("expected exactly one signing certificate")
	ErrFingerprintMismatch  = fmt.Errorf("signing certificate does not match pinned fingerprint")
	ErrIndexEntryMissing    = fmt.Errorf("signed container has no index entry")
	ErrDigestMismatch       = fmt.Errorf("signed container digest mismatch")
	ErrNoTrustMaterial      = fmt.Errorf("signed repository has no trust material")

	// Parse errors.
	ErrUnexpectedNesting = fmt.Errorf("unexpected element nesting")
	ErrMissingAppID      = fmt.Errorf("application without id")

	// Sync errors.
	ErrSyncInProgress = fmt.Errorf("a sync is already in progress")

	// Hook errors.
	ErrHookTypeEmpty = fmt.Errorf("hook type cannot be empty")
	ErrHookExecution = fmt.Errorf("error executing hook")
	ErrHookScript    = fmt.Errorf("hook script error")
	ErrHookLoad      = fmt.Errorf("failed to load hook")
)

// ErrRepositoryExistsWithName reports a duplicate repository name.
func ErrRepositoryExistsWithName(name string) error {
	return fmt.Errorf("%w: %s", ErrRepositoryExists, name)
}

// ErrRepositoryNotFoundWithName reports a missing repository.
func ErrRepositoryNotFoundWithName(name string) error {
	return fmt.Errorf("%w: %s", ErrRepositoryNotFound, name)
}

// ErrEmptyRepositoryNameWithIndex reports the position of a nameless repository entry.
func ErrEmptyRepositoryNameWithIndex(i int) error {
	return fmt.Errorf("%w (entry %d)", ErrRepositoryNameEmpty, i)
}

// ErrRepositoryURLEmptyWithName reports a repository without an address.
func ErrRepositoryURLEmptyWithName(name string) error {
	return fmt.Errorf("%w: %s", ErrRepositoryURLEmpty, name)
}

// ErrInvalidLogLevelWithDetails reports a log level that logrus does not know.
func ErrInvalidLogLevelWithDetails(level string) error {
	return fmt.Errorf("%w: %q (valid: debug, info, warn, error)", ErrInvalidLogLevel, level)
}

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
