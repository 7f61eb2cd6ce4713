package models

// GlobalConfig holds the resolved recorder configuration. Values come from
// .recli.yaml in the log root, overlaid with RECLI_* environment variables.
type GlobalConfig struct {
	// Host identifies this machine in persisted events. Defaults to
	// os.Hostname() when not overridden.
	Host string `yaml:"host" mapstructure:"host"`
	// LogDir is the root directory holding per-session directories.
	LogDir string `yaml:"log_dir" mapstructure:"log_dir"`
	// Shell is the program wrapped by the recorder.
	Shell string `yaml:"shell" mapstructure:"shell"`
	// Hotkey is the control byte intercepted by the driver instead of being
	// forwarded to the shell.
	Hotkey byte `yaml:"hotkey" mapstructure:"hotkey"`
	// Detector tunes command-boundary detection.
	Detector DetectorConfig `yaml:"detector" mapstructure:"detector"`
}

// DetectorConfig configures the command boundary detector.
type DetectorConfig struct {
	// Marker is the OSC sequence number used for semantic prompt marks.
	// 133 matches the FinalTerm/iTerm2 shell-integration convention.
	Marker int `yaml:"marker" mapstructure:"marker"`
	// Prompts lists extra fallback prompt patterns (regular expressions)
	// tried when no marker framing is present in the stream.
	Prompts []string `yaml:"prompts,omitempty" mapstructure:"prompts"`
}
