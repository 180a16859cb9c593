package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the external run configuration file.
type Config struct {
	Paths        []string `json:"paths,omitempty" yaml:"paths"`
	Tags         []string `json:"tags,omitempty" yaml:"tags"`
	Env          string   `json:"env,omitempty" yaml:"env"`
	Threads      int      `json:"threads,omitempty" yaml:"threads"`
	ScenarioName string   `json:"scenarioName,omitempty" yaml:"scenarioName"`
	ConfigDir    string   `json:"configDir,omitempty" yaml:"configDir"`
	DryRun       bool     `json:"dryRun,omitempty" yaml:"dryRun"`
	Clean        bool     `json:"clean,omitempty" yaml:"clean"`
	WorkingDir   string   `json:"workingDir,omitempty" yaml:"workingDir"`
	Output       Output   `json:"output,omitempty" yaml:"output"`
}

// Output holds the report toggles and target directory.
type Output struct {
	Dir          string `json:"dir,omitempty" yaml:"dir"`
	HTML         bool   `json:"html,omitempty" yaml:"html"`
	JUnitXML     bool   `json:"junitXml,omitempty" yaml:"junitXml"`
	CucumberJSON bool   `json:"cucumberJson,omitempty" yaml:"cucumberJson"`
	JSONLines    bool   `json:"jsonLines,omitempty" yaml:"jsonLines"`
}

func Default() *Config {
	return &Config{
		Threads: 1,
		Output:  Output{Dir: "target"},
	}
}

// ConfigFilenames are searched in order when no explicit path is given.
var ConfigFilenames = []string{
	"featrun.config.json",
	".featrunrc.json",
	"featrun.config.yaml",
	"featrun.config.yml",
}

// Load reads configuration from path, or searches the current directory
// when path is empty. A missing search result yields defaults; an explicit
// path that cannot be read or validated is an error.
func Load(path string) (*Config, error) {
	if path != "" {
		return loadFile(path)
	}
	return FindAndLoad(".")
}

// FindAndLoad searches dir for a config file, returning defaults when none
// exists.
func FindAndLoad(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		p := filepath.Join(dir, filename)
		if _, err := os.Stat(p); err == nil {
			return loadFile(p)
		}
	}
	return Default(), nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return cfg, cfg.Validate()
	}
	if err := ValidateJSON(data); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks constraints the schema cannot express.
func (c *Config) Validate() error {
	if c.Threads < 0 {
		return fmt.Errorf("threads must not be negative")
	}
	for _, p := range c.Paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("paths must not contain empty entries")
		}
	}
	return nil
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
