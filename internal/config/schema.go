package config

// Config is the effective ief configuration. Values come from defaults, then
// the config file, then IEF_* environment variables, then flags.
type Config struct {
	Scan   ScanConfig   `yaml:"scan"`
	Walk   WalkConfig   `yaml:"walk"`
	Log    LogConfig    `yaml:"log"`
	Output OutputConfig `yaml:"output"`
}

// ScanConfig controls how candidate files are read and checked.
type ScanConfig struct {
	// Workers is the number of files checked concurrently.
	Workers int `yaml:"workers" env:"IEF_WORKERS"`
	// MaxFileSize skips larger candidates.
	MaxFileSize ByteSize `yaml:"max_file_size" env:"IEF_MAX_FILE_SIZE"`
	// Access is "mmap" or "read".
	Access string `yaml:"access" env:"IEF_ACCESS"`
}

// WalkConfig controls directory enumeration.
type WalkConfig struct {
	Hidden         bool     `yaml:"hidden" env:"IEF_HIDDEN"`
	FollowSymlinks bool     `yaml:"follow_symlinks" env:"IEF_FOLLOW_SYMLINKS"`
	IgnoreFiles    []string `yaml:"ignore_files" env:"IEF_IGNORE_FILES"`
	UseIgnoreFiles bool     `yaml:"use_ignore_files" env:"IEF_USE_IGNORE_FILES"`
}

// LogConfig controls diagnostic output on stderr.
type LogConfig struct {
	Level  string `yaml:"level" env:"IEF_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"IEF_LOG_PRETTY"`
}

// OutputConfig controls how results are printed.
type OutputConfig struct {
	// Format is one of text, table, json, csv or markdown.
	Format string `yaml:"format" env:"IEF_FORMAT"`
}
