package config

// Config represents the complete skillit configuration
type Config struct {
	Version  string   `yaml:"version"`
	Settings Settings `yaml:"settings"`
	Rules    Rules    `yaml:"rules"`
	Classify Classify `yaml:"classify"`
	Catalog  Catalog  `yaml:"catalog"`
}

// Settings contains global configuration settings
type Settings struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file,omitempty"`
}

// Rules locates the rule directories. Precedence when the same rule
// name appears in several: project > user > system.
type Rules struct {
	SystemDir  string `yaml:"system_dir,omitempty"`
	UserDir    string `yaml:"user_dir,omitempty"`
	ProjectDir string `yaml:"project_dir,omitempty"`
}

// Classify holds the classification matcher settings
type Classify struct {
	Threshold float64 `yaml:"threshold,omitempty"`
}

// Catalog locates the certified-rule catalog database
type Catalog struct {
	Path string `yaml:"path,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Settings: Settings{
			LogLevel: "info",
		},
		Classify: Classify{
			Threshold: 0.7,
		},
	}
}
