// Package config provides configuration loading and management for omop2owl.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/omop2owl/errs"
	"github.com/c360studio/omop2owl/export"
	"github.com/c360studio/omop2owl/pipeline"
	"github.com/c360studio/omop2owl/relmap"
	"github.com/c360studio/omop2owl/tools/robot"
	"github.com/c360studio/omop2owl/tools/semsql"
	vocab "github.com/c360studio/omop2owl/vocabulary/omop"
)

// Config represents the complete omop2owl configuration
type Config struct {
	Output        OutputConfig        `yaml:"output"`
	Tools         ToolsConfig         `yaml:"tools"`
	Prefixes      map[string]string   `yaml:"prefixes"`
	PrefixRepairs map[string]string   `yaml:"prefix_repairs"`
	Relationships RelationshipsConfig `yaml:"relationships"`
	NATS          NATSConfig          `yaml:"nats"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// OutputConfig configures where and what is written
type OutputConfig struct {
	// Dir is the output directory (empty = current directory)
	Dir string `yaml:"dir"`
	// OntologyID names the merged ontology and its PURL
	OntologyID string `yaml:"ontology_id"`
	// Mode is the output type (merged, split, merged-post-split, rxnorm)
	Mode string `yaml:"mode"`
	// Preview is the RDF preview format (turtle, ntriples); empty disables it
	Preview string `yaml:"preview"`
}

// ToolsConfig configures the external tools
type ToolsConfig struct {
	// RobotPath is the ROBOT executable
	RobotPath string `yaml:"robot_path"`
	// DockerPath is the docker executable used for SemanticSQL
	DockerPath string `yaml:"docker_path"`
	// Image is the ODK docker image providing semsql
	Image string `yaml:"image"`
	// MemoryGB is the Java heap for ROBOT and semsql
	MemoryGB int `yaml:"memory_gb"`
	// SemSQLStacktrace is none, lite or full
	SemSQLStacktrace string `yaml:"semsql_stacktrace"`
}

// RelationshipsConfig configures how relationship labels become predicates
type RelationshipsConfig struct {
	// Default lists the labels included when none are given on the command line
	Default []string `yaml:"default"`
	// Namespace is the prefix of sanitized predicates
	Namespace string `yaml:"namespace"`
	// Canonical maps labels onto predicates keeping direction
	Canonical map[string]string `yaml:"canonical"`
	// Inverse maps labels onto predicates with subject and object swapped
	Inverse map[string]string `yaml:"inverse"`
	// Replacements is the ordered character substitution table
	Replacements []relmap.Replacement `yaml:"replacements"`
}

// NATSConfig configures report publishing
type NATSConfig struct {
	// URL is the NATS server URL (empty = do not publish)
	URL string `yaml:"url"`
	// SubjectPrefix prefixes the report subjects
	SubjectPrefix string `yaml:"subject_prefix"`
}

// MetricsConfig configures metric output
type MetricsConfig struct {
	// File is the node-exporter textfile path (empty = disabled)
	File string `yaml:"file"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	rel := relmap.DefaultConfig()
	canonical := make(map[string]string, len(rel.Canonical))
	for k, v := range rel.Canonical {
		canonical[k] = string(v)
	}
	inverse := make(map[string]string, len(rel.Inverse))
	for k, v := range rel.Inverse {
		inverse[k] = string(v)
	}

	return &Config{
		Output: OutputConfig{
			Dir:        "", // Current directory
			OntologyID: pipeline.DefaultOntologyID,
			Mode:       string(pipeline.DefaultMode),
		},
		Tools: ToolsConfig{
			RobotPath:        robot.DefaultPath,
			DockerPath:       semsql.DefaultDockerPath,
			Image:            semsql.DefaultImage,
			MemoryGB:         pipeline.DefaultMemoryGB,
			SemSQLStacktrace: string(semsql.StacktraceNone),
		},
		Prefixes:      vocab.DefaultPrefixes(),
		PrefixRepairs: vocab.DefaultPrefixRepairs(),
		Relationships: RelationshipsConfig{
			Default:      []string{vocab.RelIsA},
			Namespace:    rel.Namespace,
			Canonical:    canonical,
			Inverse:      inverse,
			Replacements: rel.Replacements,
		},
		NATS: NATSConfig{
			SubjectPrefix: "omop2owl.run",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errs.WrapConfig(fmt.Errorf("%w: "+format, append([]any{errs.ErrInvalidConfig}, args...)...), "config", "Validate")
	}

	if c.Output.OntologyID == "" {
		return invalid("output.ontology_id is required")
	}
	if !slices.Contains(pipeline.Modes, pipeline.Mode(c.Output.Mode)) {
		return invalid("output.mode %q is not one of %v", c.Output.Mode, pipeline.Modes)
	}
	if c.Output.Preview != "" {
		if _, ok := export.GetFormatInfo(export.Format(c.Output.Preview)); !ok {
			return invalid("output.preview %q is not a known format", c.Output.Preview)
		}
	}
	if c.Tools.MemoryGB < 0 {
		return invalid("tools.memory_gb must not be negative")
	}
	if !semsql.Stacktrace(c.Tools.SemSQLStacktrace).Valid() {
		return invalid("tools.semsql_stacktrace must be none, lite or full")
	}
	if c.Relationships.Namespace == "" {
		return invalid("relationships.namespace is required")
	}
	if _, ok := c.Prefixes[c.Relationships.Namespace]; !ok {
		return invalid("prefixes must declare the relationship namespace %q", c.Relationships.Namespace)
	}
	for i, r := range c.Relationships.Replacements {
		if r.Old == "" {
			return invalid("relationships.replacements[%d].old is empty", i)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	layer, err := readFile(path)
	if err != nil {
		return nil, err
	}
	config := DefaultConfig()
	config.Merge(layer)
	return config, nil
}

// readFile parses a YAML file without applying defaults.
func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errs.WrapConfig(fmt.Errorf("failed to parse config file: %w", err), "config", "Load")
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Output
	if other.Output.Dir != "" {
		c.Output.Dir = other.Output.Dir
	}
	if other.Output.OntologyID != "" {
		c.Output.OntologyID = other.Output.OntologyID
	}
	if other.Output.Mode != "" {
		c.Output.Mode = other.Output.Mode
	}
	if other.Output.Preview != "" {
		c.Output.Preview = other.Output.Preview
	}

	// Tools
	if other.Tools.RobotPath != "" {
		c.Tools.RobotPath = other.Tools.RobotPath
	}
	if other.Tools.DockerPath != "" {
		c.Tools.DockerPath = other.Tools.DockerPath
	}
	if other.Tools.Image != "" {
		c.Tools.Image = other.Tools.Image
	}
	if other.Tools.MemoryGB != 0 {
		c.Tools.MemoryGB = other.Tools.MemoryGB
	}
	if other.Tools.SemSQLStacktrace != "" {
		c.Tools.SemSQLStacktrace = other.Tools.SemSQLStacktrace
	}

	// Prefix maps are merged key by key
	for k, v := range other.Prefixes {
		if c.Prefixes == nil {
			c.Prefixes = make(map[string]string)
		}
		c.Prefixes[k] = v
	}
	for k, v := range other.PrefixRepairs {
		if c.PrefixRepairs == nil {
			c.PrefixRepairs = make(map[string]string)
		}
		c.PrefixRepairs[k] = v
	}

	// Relationships
	if len(other.Relationships.Default) > 0 {
		c.Relationships.Default = other.Relationships.Default
	}
	if other.Relationships.Namespace != "" {
		c.Relationships.Namespace = other.Relationships.Namespace
	}
	if other.Relationships.Canonical != nil {
		c.Relationships.Canonical = other.Relationships.Canonical
	}
	if other.Relationships.Inverse != nil {
		c.Relationships.Inverse = other.Relationships.Inverse
	}
	if len(other.Relationships.Replacements) > 0 {
		c.Relationships.Replacements = other.Relationships.Replacements
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.SubjectPrefix != "" {
		c.NATS.SubjectPrefix = other.NATS.SubjectPrefix
	}

	// Metrics
	if other.Metrics.File != "" {
		c.Metrics.File = other.Metrics.File
	}
}

// RelmapConfig returns the relationship mapper configuration.
func (c *Config) RelmapConfig() relmap.Config {
	cfg := relmap.DefaultConfig()
	cfg.Namespace = c.Relationships.Namespace
	cfg.Replacements = c.Relationships.Replacements
	cfg.Canonical = make(map[string]relmap.Predicate, len(c.Relationships.Canonical))
	for k, v := range c.Relationships.Canonical {
		cfg.Canonical[k] = relmap.Predicate(v)
	}
	cfg.Inverse = make(map[string]relmap.Predicate, len(c.Relationships.Inverse))
	for k, v := range c.Relationships.Inverse {
		cfg.Inverse[k] = relmap.Predicate(v)
	}
	return cfg
}

// PipelineOptions returns run options with every configured value set.
// Inputs and per-run switches are left to the caller.
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		OutDir:        c.Output.Dir,
		OntologyID:    c.Output.OntologyID,
		Mode:          pipeline.Mode(c.Output.Mode),
		Preview:       export.Format(c.Output.Preview),
		Relationships: slices.Clone(c.Relationships.Default),
		MemoryGB:      c.Tools.MemoryGB,
		Prefixes:      c.Prefixes,
		PrefixRepairs: c.PrefixRepairs,
		Relmap:        c.RelmapConfig(),
	}
}

// SemSQLOptions returns the SemanticSQL converter options.
func (c *Config) SemSQLOptions() semsql.Options {
	return semsql.Options{
		DockerPath: c.Tools.DockerPath,
		Image:      c.Tools.Image,
		MemoryGB:   c.Tools.MemoryGB,
		Stacktrace: semsql.Stacktrace(c.Tools.SemSQLStacktrace),
		Prefixes:   c.Prefixes,
	}
}
