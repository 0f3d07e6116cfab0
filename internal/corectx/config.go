package corectx

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// RemoteConfig describes one configured remote artifact cache, following
// the shape of the teacher's storagedriver parameter maps but specialized
// to the push/pull semantics of spec.md §4.4.
type RemoteConfig struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"` // "s3", "http", "redis"
	URL         string `yaml:"url"`
	Bucket      string `yaml:"bucket"`
	Region      string `yaml:"region"`
	PushEnabled bool   `yaml:"push"`
	PullEnabled bool   `yaml:"pull"`
}

// ResourceLimits carries the per-resource-type concurrency caps of spec §5.
type ResourceLimits struct {
	Process  int `yaml:"process"`
	Download int `yaml:"download"`
	Upload   int `yaml:"upload"`
}

// Config is the on-disk configuration format, loaded once at startup.
type Config struct {
	CacheDir     string         `yaml:"cachedir"`
	QuotaBytes   int64          `yaml:"quota"`
	Resources    ResourceLimits `yaml:"resources"`
	Remotes      []RemoteConfig `yaml:"remotes"`
	PullBuildtrees bool         `yaml:"pull-buildtrees"`
}

// DefaultConfig mirrors the teacher's configuration.Parse defaulting
// behavior: anything the user omits gets a sane default rather than a
// zero value that breaks downstream arithmetic.
func DefaultConfig() Config {
	return Config{
		CacheDir:   "/var/cache/buildstream",
		QuotaBytes: 10 << 30, // 10 GiB
		Resources: ResourceLimits{
			Process:  4,
			Download: 8,
			Upload:   4,
		},
	}
}

// LoadConfig reads and parses a YAML configuration file, applying defaults
// for anything left unset, the way the teacher's configuration package
// layers a parsed document over defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("corectx: reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("corectx: parsing config %s: %w", path, err)
	}

	if cfg.Resources.Process == 0 {
		cfg.Resources.Process = DefaultConfig().Resources.Process
	}
	if cfg.Resources.Download == 0 {
		cfg.Resources.Download = DefaultConfig().Resources.Download
	}
	if cfg.Resources.Upload == 0 {
		cfg.Resources.Upload = DefaultConfig().Resources.Upload
	}
	if cfg.QuotaBytes == 0 {
		cfg.QuotaBytes = DefaultConfig().QuotaBytes
	}

	return cfg, nil
}
