// Package semsql converts OWL files into SemanticSQL databases by running
// semsql inside the ODK docker image.
package semsql

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/omop2owl/errs"
	"github.com/c360studio/omop2owl/tools/runner"
)

// Defaults.
const (
	DefaultDockerPath = "docker"
	DefaultImage      = "obolibrary/odkfull:dev"
	PrefixesFile      = "prefixes.csv"
)

// Stacktrace controls RUST_BACKTRACE inside the container.
type Stacktrace string

// Stacktrace modes.
const (
	StacktraceNone Stacktrace = "none"
	StacktraceLite Stacktrace = "lite"
	StacktraceFull Stacktrace = "full"
)

// Valid reports whether s is a known mode. Empty is treated as none.
func (s Stacktrace) Valid() bool {
	switch s {
	case "", StacktraceNone, StacktraceLite, StacktraceFull:
		return true
	}
	return false
}

func (s Stacktrace) env() string {
	switch s {
	case StacktraceLite:
		return "RUST_BACKTRACE=1"
	case StacktraceFull:
		return "RUST_BACKTRACE=full"
	}
	return ""
}

// leftoverTemplate is the template database semsql leaves in its working
// directory.
const leftoverTemplate = ".template.db"

// intermediates are the files semsql leaves next to its output, relative to
// the output directory; {stem} is replaced by the OWL file stem.
var intermediates = []string{
	"{stem}.db.tmp",
	"{stem}-relation-graph.tsv.gz",
	leftoverTemplate,
}

// leftoverPatterns match the intermediates of any earlier, interrupted run.
var leftoverPatterns = []string{
	"*.db.tmp",
	"*-relation-graph.tsv.gz",
	leftoverTemplate,
}

// Options configures the converter.
type Options struct {
	DockerPath string
	Image      string
	MemoryGB   int
	Stacktrace Stacktrace
	Prefixes   map[string]string
}

// Converter runs semsql through docker.
type Converter struct {
	opts   Options
	run    runner.Runner
	logger *slog.Logger
}

// New creates a converter. Empty docker path and image fall back to the defaults.
func New(opts Options, run runner.Runner, logger *slog.Logger) *Converter {
	if opts.DockerPath == "" {
		opts.DockerPath = DefaultDockerPath
	}
	if opts.Image == "" {
		opts.Image = DefaultImage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{opts: opts, run: run, logger: logger}
}

// DBPath returns the database path produced for an OWL file.
func DBPath(owlPath string) string {
	return strings.TrimSuffix(owlPath, filepath.Ext(owlPath)) + ".db"
}

// Command returns the docker invocation converting owlPath.
func (c *Converter) Command(owlPath string) (runner.Command, error) {
	dir, err := filepath.Abs(filepath.Dir(owlPath))
	if err != nil {
		return runner.Command{}, fmt.Errorf("resolve output dir: %w", err)
	}
	args := []string{"run", "-v", dir + ":/work"}
	if c.opts.MemoryGB > 0 {
		args = append(args, "-e", "ROBOT_JAVA_ARGS=-Xmx"+strconv.Itoa(c.opts.MemoryGB)+"G")
	}
	if env := c.opts.Stacktrace.env(); env != "" {
		args = append(args, "-e", env)
	}
	args = append(args,
		"-w", "/work",
		c.opts.Image,
		"semsql", "-v", "make", filepath.Base(DBPath(owlPath)),
		"-P", PrefixesFile,
	)
	return runner.Command{Name: c.opts.DockerPath, Args: args}, nil
}

// Make converts owlPath to a SemanticSQL database next to it and returns the
// database path. The prefixes file is written to the output directory first
// and intermediates are removed afterwards, also on failure.
func (c *Converter) Make(ctx context.Context, owlPath string) (string, error) {
	dir := filepath.Dir(owlPath)
	if err := WritePrefixes(filepath.Join(dir, PrefixesFile), c.opts.Prefixes); err != nil {
		return "", errs.WrapTool(err, "semsql", "Make")
	}

	cmd, err := c.Command(owlPath)
	if err != nil {
		return "", errs.WrapTool(err, "semsql", "Make")
	}

	c.logger.Info("Converting to SemanticSQL", "path", owlPath)
	_, runErr := c.run.Run(ctx, cmd)

	removed, err := Cleanup(owlPath)
	if err != nil {
		c.logger.Warn("Failed to remove semsql intermediates", "path", owlPath, "error", err)
	}
	for _, p := range removed {
		c.logger.Debug("Removed semsql intermediate", "path", p)
	}

	if runErr != nil {
		return "", errs.WrapTool(runErr, "semsql", "Make")
	}
	return DBPath(owlPath), nil
}

// Install pulls the docker image.
func (c *Converter) Install(ctx context.Context) error {
	c.logger.Info("Pulling docker image", "image", c.opts.Image)
	if _, err := c.run.Run(ctx, runner.Command{Name: c.opts.DockerPath, Args: []string{"pull", c.opts.Image}}); err != nil {
		return errs.WrapTool(err, "semsql", "Install")
	}
	return nil
}

// WritePrefixes writes the semsql prefixes CSV (prefix,base), sorted by prefix.
func WritePrefixes(path string, prefixes map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create prefixes file: %w", err)
	}
	defer f.Close()

	keys := make([]string, 0, len(prefixes))
	for k := range prefixes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := csv.NewWriter(f)
	if err := w.Write([]string{"prefix", "base"}); err != nil {
		return fmt.Errorf("write prefixes: %w", err)
	}
	for _, k := range keys {
		if err := w.Write([]string{k, prefixes[k]}); err != nil {
			return fmt.Errorf("write prefixes: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write prefixes: %w", err)
	}
	return f.Close()
}

// Cleanup removes semsql intermediates left next to owlPath and returns the
// removed paths.
func Cleanup(owlPath string) ([]string, error) {
	dir := filepath.Dir(owlPath)
	stem := strings.TrimSuffix(filepath.Base(owlPath), filepath.Ext(owlPath))

	var removed []string
	for _, name := range intermediates {
		p := filepath.Join(dir, strings.ReplaceAll(name, "{stem}", stem))
		err := os.Remove(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("remove %s: %w", p, err)
		}
		removed = append(removed, p)
	}
	return removed, nil
}

// CleanupDir removes the intermediates of earlier, interrupted semsql runs
// in dir and returns the removed paths.
func CleanupDir(dir string) ([]string, error) {
	fsys := os.DirFS(dir)

	var removed []string
	for _, pattern := range leftoverPatterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return removed, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, rel := range matches {
			p := filepath.Join(dir, filepath.FromSlash(rel))
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return removed, fmt.Errorf("remove %s: %w", p, err)
			}
			removed = append(removed, p)
		}
	}
	return removed, nil
}
