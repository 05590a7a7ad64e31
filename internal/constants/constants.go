// Package constants defines shared configuration constants.
package constants

var (
	ConfigFile = "config.yaml"

	DefaultDir = ".ief"

	// ConfigDirEnv overrides the directory holding ConfigFile.
	ConfigDirEnv = "IEF_CONFIG"

	// NoColorEnv disables styled terminal output when set.
	NoColorEnv = "NO_COLOR"
)
