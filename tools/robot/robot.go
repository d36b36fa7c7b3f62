// Package robot converts ROBOT templates to OWL with the ROBOT command line tool.
package robot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/c360studio/omop2owl/errs"
	"github.com/c360studio/omop2owl/tools/runner"
)

// DefaultPath is the ROBOT executable looked up on PATH.
const DefaultPath = "robot"

// Options configures a template conversion.
type Options struct {
	// TemplatePath is the ROBOT template TSV.
	TemplatePath string

	// OntologyIRI is the IRI of the produced ontology.
	OntologyIRI string

	// OutputPath is the OWL (RDF/XML) output file.
	OutputPath string

	// Prefixes are passed to ROBOT as --prefix "k: v", sorted by prefix.
	Prefixes map[string]string

	// MemoryGB sets the Java heap through ROBOT_JAVA_ARGS. Zero leaves it unset.
	MemoryGB int
}

// Robot invokes ROBOT through a runner.
type Robot struct {
	path   string
	run    runner.Runner
	logger *slog.Logger
}

// New returns a Robot using the executable at path (DefaultPath when empty).
func New(path string, run runner.Runner, logger *slog.Logger) *Robot {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Robot{path: path, run: run, logger: logger}
}

// Command returns the invocation for opts.
func (r *Robot) Command(opts Options) runner.Command {
	args := []string{
		"template",
		"--template", opts.TemplatePath,
		"--ontology-iri", opts.OntologyIRI,
		"--output", opts.OutputPath,
	}
	keys := make([]string, 0, len(opts.Prefixes))
	for k := range opts.Prefixes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--prefix", k+": "+opts.Prefixes[k])
	}

	cmd := runner.Command{Name: r.path, Args: args}
	if opts.MemoryGB > 0 {
		cmd.Env = []string{"ROBOT_JAVA_ARGS=-Xmx" + strconv.Itoa(opts.MemoryGB) + "G"}
	}
	return cmd
}

// Template converts the template at opts.TemplatePath into OWL.
func (r *Robot) Template(ctx context.Context, opts Options) error {
	r.logger.Info("Converting template to OWL", "template", opts.TemplatePath, "path", opts.OutputPath)
	if _, err := r.run.Run(ctx, r.Command(opts)); err != nil {
		return errs.WrapTool(err, "robot", "Template")
	}
	if _, err := os.Stat(opts.OutputPath); err != nil {
		return errs.WrapTool(fmt.Errorf("%w: robot produced no output: %v", errs.ErrToolFailed, err), "robot", "Template")
	}
	return nil
}

// RepairPrefixes renames XML prefixes in an RDF/XML file. ROBOT derives
// element prefixes from the last IRI path segment instead of the declared
// prefixes; repairs maps those derived prefixes onto the intended ones.
// Opening tags, closing tags and xmlns declarations are rewritten.
func RepairPrefixes(path string, repairs map[string]string) error {
	if len(repairs) == 0 {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read owl: %w", err)
	}

	keys := make([]string, 0, len(repairs))
	for k := range repairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*6)
	for _, from := range keys {
		to := repairs[from]
		pairs = append(pairs,
			"</"+from+":", "</"+to+":",
			"<"+from+":", "<"+to+":",
			"xmlns:"+from, "xmlns:"+to,
		)
	}
	contents := strings.NewReplacer(pairs...).Replace(string(data))

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat owl: %w", err)
	}
	if err := os.WriteFile(path, []byte(contents), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write owl: %w", err)
	}
	return nil
}
