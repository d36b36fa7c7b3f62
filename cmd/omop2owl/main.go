// Package main provides the omop2owl binary entry point.
// omop2owl converts OMOP vocabulary tables into OWL ontologies with ROBOT
// and, optionally, into SemanticSQL databases.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/c360studio/omop2owl/config"
	"github.com/c360studio/omop2owl/errs"
	"github.com/c360studio/omop2owl/export"
	"github.com/c360studio/omop2owl/metric"
	"github.com/c360studio/omop2owl/notify"
	"github.com/c360studio/omop2owl/pipeline"
	"github.com/c360studio/omop2owl/tools/robot"
	"github.com/c360studio/omop2owl/tools/runner"
	"github.com/c360studio/omop2owl/tools/semsql"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "omop2owl"
)

// Exit codes. Unclassified failures exit with exitTool.
const (
	exitTool   = 1
	exitPanic  = 2
	exitConfig = 3
	exitData   = 4
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(exitPanic)
		}
	}()

	if err := rootCmd(runner.Exec{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error (%s): %v\n", errs.Classify(err), err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit code of its class.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errs.IsConfig(err):
		return exitConfig
	case errs.IsData(err):
		return exitData
	default:
		return exitTool
	}
}

// runFlags holds the values of the root command flags.
type runFlags struct {
	conceptCSV        string
	relationshipCSV   string
	outDir            string
	ontologyID        string
	outputType        string
	vocabs            []string
	relationships     []string
	skipSemSQL        bool
	excludeSingletons bool
	semsqlOnly        bool
	useCache          bool
	memory            int
	install           bool
	turtle            bool
	previewFormat     string

	configPath  string
	logLevel    string
	metricsFile string
	natsURL     string
}

func rootCmd(exec runner.Runner) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Convert OMOP vocabularies to OWL",
		Long: `omop2owl converts the OMOP CONCEPT and CONCEPT_RELATIONSHIP tables into
OWL ontologies.

Concepts become classes carrying their attributes as annotations; relationships
become subclass axioms or annotation assertions. Output is produced with ROBOT
and can be converted to a SemanticSQL database with the ODK docker image.

Output types:
- merged: one ontology with all selected concepts
- split: one ontology per vocabulary
- merged-post-split: one ontology per vocabulary, stitched into one
- rxnorm: RxNorm and ATC with the RxNorm hierarchy and mapping relationships

Exit codes: 1 tool or other failure, 2 panic, 3 configuration error, 4 data error.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f, exec)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.conceptCSV, "concept-csv-path", "c", "", "Path to CONCEPT.csv")
	flags.StringVarP(&f.relationshipCSV, "concept-relationship-csv-path", "r", "", "Path to CONCEPT_RELATIONSHIP.csv")
	flags.StringVarP(&f.outDir, "outdir", "O", "", "Output directory (default current directory)")
	flags.StringVarP(&f.ontologyID, "ontology-id", "I", "", "Ontology ID used in the output name and IRI (default OMOP)")
	flags.StringVarP(&f.outputType, "output-type", "o", "", "Output type: merged, split, merged-post-split or rxnorm")
	flags.StringSliceVarP(&f.vocabs, "vocabs", "v", nil, "Only include concepts from these vocabularies")
	flags.StringSliceVarP(&f.relationships, "relationships", "R", nil, `Relationship types to include, or "ALL" (default "Is a")`)
	flags.BoolVarP(&f.skipSemSQL, "skip-semsql", "S", false, "Do not build SemanticSQL databases")
	flags.BoolVarP(&f.excludeSingletons, "exclude-singletons", "e", false, "Keep only concepts without any relationship (all relationship types count)")
	flags.BoolVarP(&f.semsqlOnly, "semsql-only", "s", false, "Only convert an existing merged OWL file to SemanticSQL")
	flags.BoolVarP(&f.useCache, "use-cache", "C", false, "Reuse filtered tables, templates and outputs from earlier runs")
	flags.IntVarP(&f.memory, "memory", "M", 0, "Java heap in GB for ROBOT and semsql (default 100)")
	flags.BoolVarP(&f.install, "install", "i", false, "Pull the ODK docker image used for SemanticSQL")
	flags.StringVar(&f.previewFormat, "preview-format", "", "Also write an RDF preview of every output: turtle or ntriples")
	flags.BoolVar(&f.turtle, "turtle", false, "Shorthand for --preview-format turtle")
	flags.StringVar(&f.configPath, "config", "", "Config file path (YAML)")
	flags.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&f.metricsFile, "metrics-file", "", "Write run metrics to this Prometheus textfile")
	flags.StringVar(&f.natsURL, "nats-url", "", "Publish the run report to this NATS server")

	cmd.AddCommand(inspectCmd())
	cmd.AddCommand(initConfigCmd())

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func newLogger(level string, w io.Writer) *slog.Logger {
	l := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

func run(cmd *cobra.Command, f runFlags, exec runner.Runner) error {
	logger := newLogger(f.logLevel, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.NewLoader(logger).Load(f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyFlags(cmd.Flags(), f, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if f.semsqlOnly && f.skipSemSQL {
		return errs.WrapConfig(
			fmt.Errorf("%w: --semsql-only and --skip-semsql", errs.ErrConflictingOptions), "cli", "run")
	}
	if !f.install && (f.conceptCSV == "" || f.relationshipCSV == "") {
		return errs.WrapConfig(
			fmt.Errorf("%w: --concept-csv-path and --concept-relationship-csv-path are required", errs.ErrMissingInput),
			"cli", "run")
	}

	// Setup signal handling
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tools := runner.NewRecorder(exec, logger)
	sq := semsql.New(cfg.SemSQLOptions(), tools, logger)

	if f.install {
		if err := sq.Install(ctx); err != nil {
			return err
		}
		if f.conceptCSV == "" || f.relationshipCSV == "" {
			return nil
		}
	}

	opts := cfg.PipelineOptions()
	opts.ConceptCSV = f.conceptCSV
	opts.RelationshipCSV = f.relationshipCSV
	opts.Vocabularies = f.vocabs
	opts.SkipSemSQL = f.skipSemSQL
	opts.ExcludeSingletons = f.excludeSingletons
	opts.UseCache = f.useCache

	var db pipeline.DBConverter
	if !f.skipSemSQL {
		db = sq
	}
	metrics := metric.New()
	p := pipeline.New(opts, robot.New(cfg.Tools.RobotPath, tools, logger), db, logger).
		WithMetrics(metrics).
		WithRecorder(tools)

	var report *pipeline.Report
	if f.semsqlOnly {
		report, err = p.SemSQLOnly(ctx)
	} else {
		report, err = p.Run(ctx)
	}

	if cfg.Metrics.File != "" {
		if werr := metrics.WriteTextfile(cfg.Metrics.File); werr != nil {
			logger.Warn("Failed to write metrics", "path", cfg.Metrics.File, "error", werr)
		}
	}
	if report != nil && cfg.NATS.URL != "" {
		publishReport(cfg, report, logger)
	}
	return err
}

// applyFlags overrides configuration values with explicitly set flags.
func applyFlags(flags *pflag.FlagSet, f runFlags, cfg *config.Config) error {
	if flags.Changed("outdir") {
		cfg.Output.Dir = f.outDir
	}
	if flags.Changed("ontology-id") {
		cfg.Output.OntologyID = f.ontologyID
	}
	if flags.Changed("output-type") {
		cfg.Output.Mode = f.outputType
	}
	if flags.Changed("relationships") {
		cfg.Relationships.Default = f.relationships
	}
	if flags.Changed("memory") {
		cfg.Tools.MemoryGB = f.memory
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.File = f.metricsFile
	}
	if flags.Changed("nats-url") {
		cfg.NATS.URL = f.natsURL
	}
	if flags.Changed("preview-format") {
		cfg.Output.Preview = f.previewFormat
	}
	if f.turtle {
		if flags.Changed("preview-format") && f.previewFormat != string(export.FormatTurtle) {
			return errs.WrapConfig(
				fmt.Errorf("%w: --turtle and --preview-format %s", errs.ErrConflictingOptions, f.previewFormat), "cli", "applyFlags")
		}
		cfg.Output.Preview = string(export.FormatTurtle)
	}
	return nil
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write the default user config unless it exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger("info", cmd.ErrOrStderr())
			path, err := config.NewLoader(logger).EnsureUserConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

// publishReport sends the report to NATS. Failures are logged only.
func publishReport(cfg *config.Config, report *pipeline.Report, logger *slog.Logger) {
	pub, err := notify.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
	if err != nil {
		logger.Warn("Failed to connect to NATS", "url", cfg.NATS.URL, "error", err)
		return
	}
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pub.Publish(ctx, report); err != nil {
		logger.Warn("Failed to publish run report", "error", err)
	}
}
