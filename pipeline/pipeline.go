// Package pipeline orchestrates a conversion run: loading and filtering the
// OMOP tables, building the relationship map and template, converting to
// OWL per partition or as one batch, stitching and SemanticSQL conversion.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/c360studio/omop2owl/cache"
	"github.com/c360studio/omop2owl/errs"
	"github.com/c360studio/omop2owl/export"
	"github.com/c360studio/omop2owl/metric"
	"github.com/c360studio/omop2owl/omop"
	"github.com/c360studio/omop2owl/owlmerge"
	"github.com/c360studio/omop2owl/relmap"
	"github.com/c360studio/omop2owl/template"
	"github.com/c360studio/omop2owl/tools/robot"
	"github.com/c360studio/omop2owl/tools/runner"
	"github.com/c360studio/omop2owl/tools/semsql"
	vocab "github.com/c360studio/omop2owl/vocabulary/omop"
)

// OWLConverter turns a ROBOT template into OWL.
type OWLConverter interface {
	Template(ctx context.Context, opts robot.Options) error
}

// DBConverter turns an OWL file into a SemanticSQL database and returns its path.
type DBConverter interface {
	Make(ctx context.Context, owlPath string) (string, error)
}

// Pipeline runs conversions.
type Pipeline struct {
	opts    Options
	owl     OWLConverter
	db      DBConverter
	store    *cache.Store
	metrics  *metric.Metrics
	recorder *runner.Recorder
	logger   *slog.Logger
}

// New creates a pipeline. db may be nil when SemanticSQL is skipped.
func New(opts Options, owl OWLConverter, db DBConverter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{opts: opts.resolved(), owl: owl, db: db, logger: logger}
}

// WithCache sets the cache store for filtered tables. Without it the store
// lives in the output directory.
func (p *Pipeline) WithCache(store *cache.Store) *Pipeline {
	p.store = store
	return p
}

// WithMetrics records run metrics.
func (p *Pipeline) WithMetrics(m *metric.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// WithRecorder adds the tool invocations seen by rec to the report.
func (p *Pipeline) WithRecorder(rec *runner.Recorder) *Pipeline {
	p.recorder = rec
	return p
}

// Options returns the resolved options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Run performs the conversion. Failures of single partitions are recorded in
// the report and do not fail the run; any other failure is returned. A
// partition whose SemanticSQL conversion fails keeps its OWL output. The
// report is written next to the merged output in both cases.
func (p *Pipeline) Run(ctx context.Context) (report *Report, err error) {
	opts := p.opts
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	outDir, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, errs.WrapConfig(fmt.Errorf("resolve outdir: %w", err), "pipeline", "Run")
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, errs.WrapConfig(fmt.Errorf("create outdir: %w", err), "pipeline", "Run")
	}
	if p.store == nil {
		p.store = cache.NewStore(outDir)
	}

	merged := MergedPath(outDir, opts.OntologyID, opts.Vocabularies)
	report = newReport(opts)
	report.MergedPath = merged
	defer func() { p.finish(report, err) }()

	removed, err := semsql.CleanupDir(outDir)
	if err != nil {
		p.logger.Warn("Failed to remove leftover semsql intermediates", "path", outDir, "error", err)
	} else if len(removed) > 0 {
		p.logger.Info("Removed leftover semsql intermediates", "path", outDir, "files", removed)
	}

	if opts.UseCache && exists(semsql.DBPath(merged)) {
		p.logger.Info("Skipping run, output exists", "path", semsql.DBPath(merged))
		report.DBPath = semsql.DBPath(merged)
		report.cacheHit(report.DBPath)
		p.metrics.RecordCacheHit("db")
		return report, nil
	}

	concepts, m, err := p.load(merged, report)
	if err != nil {
		return report, err
	}

	if opts.singleBatch() {
		res := p.produce(ctx, stem(merged), concepts, m, merged, vocab.OntologyIRI(opts.OntologyID), !opts.SkipSemSQL, report)
		report.Output = &res
		if !res.OK() {
			return report, res.Err
		}
		if res.DBFailed() {
			return report, res.DBErr
		}
		report.DBPath = res.DBPath
		return report, nil
	}

	uncached := false
	parts, err := PartitionConcepts(concepts, opts.PartitionOrder)
	if err != nil {
		return report, err
	}
	partSemSQL := opts.Mode == ModeSplit && !opts.SkipSemSQL
	for i, part := range parts {
		p.logger.Info("Creating outputs", "partition", part.Name, "index", i+1, "total", len(parts))
		path := filepath.Join(outDir, part.Name+".owl")
		res := p.produce(ctx, part.Name, part.Concepts, m, path, vocab.OntologyIRI(part.Name), partSemSQL, report)
		if !res.OK() {
			p.logger.Warn("Skipping partition", "partition", part.Name, "error", res.Err)
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				p.logger.Warn("Failed to remove partial output", "path", path, "error", rmErr)
			}
		} else {
			if res.DBFailed() {
				p.logger.Warn("SemanticSQL conversion failed, keeping OWL", "partition", part.Name, "error", res.DBErr)
			}
			if !res.CachedOWL {
				uncached = true
			}
		}
		p.metrics.RecordPartition(part.Name, res.OK(), res.Duration)
		report.Partitions = append(report.Partitions, res)
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}

	if opts.Mode != ModeMergedPostSplit {
		return report, nil
	}

	if opts.UseCache && exists(merged) && !uncached {
		p.logger.Info("Using cached merged output", "path", merged)
		report.cacheHit(merged)
		p.metrics.RecordCacheHit("merged")
	} else if err := p.stitch(merged, report.Succeeded()); err != nil {
		return report, err
	}

	if opts.SkipSemSQL {
		return report, nil
	}
	db, err := p.makeDB(ctx, merged, report)
	if err != nil {
		return report, err
	}
	report.DBPath = db
	return report, nil
}

// SemSQLOnly converts an existing merged OWL file to SemanticSQL.
func (p *Pipeline) SemSQLOnly(ctx context.Context) (report *Report, err error) {
	outDir, err := filepath.Abs(p.opts.OutDir)
	if err != nil {
		return nil, errs.WrapConfig(fmt.Errorf("resolve outdir: %w", err), "pipeline", "SemSQLOnly")
	}
	merged := MergedPath(outDir, p.opts.OntologyID, p.opts.Vocabularies)
	if !exists(merged) {
		return nil, errs.WrapConfig(fmt.Errorf("%w: %s", errs.ErrMissingInput, merged), "pipeline", "SemSQLOnly")
	}

	report = newReport(p.opts)
	report.MergedPath = merged
	defer func() { p.finish(report, err) }()

	db, err := p.makeDB(ctx, merged, report)
	if err != nil {
		return report, err
	}
	report.DBPath = db
	return report, nil
}

// load reads and filters the tables and builds the relationship map, or
// reuses a cached result.
func (p *Pipeline) load(merged string, report *Report) (*omop.ConceptTable, *relmap.Map, error) {
	opts := p.opts
	key := cache.Key{
		Stem:              stem(merged),
		Vocabularies:      opts.Vocabularies,
		Relationships:     opts.Relationships,
		ExcludeSingletons: opts.ExcludeSingletons,
	}

	if opts.UseCache {
		entry, err := p.store.Load(key)
		switch {
		case err == nil:
			concepts, err := entry.ConceptTable()
			if err == nil {
				p.logger.Info("Loaded cached tables", "key", key.Hash())
				report.cacheHit(filepath.Join(p.store.Dir(), key.Hash()+".json"))
				p.metrics.RecordCacheHit("tables")
				m := entry.Map()
				p.summarize(concepts, m, report)
				return concepts, m, nil
			}
			p.logger.Warn("Ignoring invalid cache entry", "key", key.Hash(), "error", err)
		case !errors.Is(err, cache.ErrNotFound):
			p.logger.Warn("Ignoring unreadable cache entry", "key", key.Hash(), "error", err)
		}
	}

	start := time.Now()
	concepts, err := omop.ReadConceptsFile(opts.ConceptCSV)
	if err != nil {
		return nil, nil, err
	}
	p.logger.Info("Read concept table", "path", opts.ConceptCSV, "concepts", concepts.Len(), "duration", time.Since(start))
	p.metrics.RecordConceptsLoaded(concepts.Len())

	start = time.Now()
	rels, err := omop.ReadRelationshipsFile(opts.RelationshipCSV)
	if err != nil {
		return nil, nil, err
	}
	p.logger.Info("Read concept_relationship table", "path", opts.RelationshipCSV, "rows", len(rels), "duration", time.Since(start))

	filtered := omop.Filter(concepts, rels, omop.FilterOptions{
		Vocabularies:      opts.Vocabularies,
		ExcludeSingletons: opts.ExcludeSingletons,
	})

	start = time.Now()
	m, err := relmap.NewBuilder(opts.Relmap, p.logger).Build(filtered.Relationships, opts.Relationships, filtered.ScopeIDs)
	if err != nil {
		return nil, nil, err
	}
	p.logger.Info("Grouped relationships", "predicates", len(m.Predicates()), "duration", time.Since(start))

	if err := p.store.Save(key, filtered.Concepts, m); err != nil {
		p.logger.Warn("Failed to cache tables", "key", key.Hash(), "error", err)
	}

	p.summarize(filtered.Concepts, m, report)
	return filtered.Concepts, m, nil
}

func (p *Pipeline) summarize(concepts *omop.ConceptTable, m *relmap.Map, report *Report) {
	report.Concepts = concepts.Len()
	for _, pred := range m.Predicates() {
		n := m.Edges(pred)
		report.Edges[string(pred)] = n
		p.metrics.RecordEdges(string(pred), n)
		p.logger.Debug("Relationship predicate", "predicate", pred, "subjects", m.Subjects(pred), "edges", n)
	}
}

// produce writes the template for concepts and converts it to OWL at
// owlPath, then optionally to SemanticSQL. Cached artifacts are reused when
// UseCache is set.
func (p *Pipeline) produce(
	ctx context.Context,
	name string,
	concepts *omop.ConceptTable,
	m *relmap.Map,
	owlPath, ontologyIRI string,
	withDB bool,
	report *Report,
) (res Result) {
	opts := p.opts
	start := time.Now()
	res = Result{
		Name:         name,
		Path:         owlPath,
		TemplatePath: TemplatePath(owlPath),
		Concepts:     concepts.Len(),
	}
	defer func() { res.Duration = time.Since(start) }()

	var batch *template.Batch
	buildBatch := func() template.Batch {
		if batch == nil {
			b := template.Build(concepts, m)
			batch = &b
		}
		return *batch
	}

	if opts.UseCache && exists(res.TemplatePath) {
		report.cacheHit(res.TemplatePath)
		p.metrics.RecordCacheHit("template")
	} else {
		p.logger.Info("Creating robot template", "partition", name, "path", res.TemplatePath)
		if err := template.WriteFile(res.TemplatePath, buildBatch()); err != nil {
			res.fail(err)
			return res
		}
		p.metrics.RecordConceptsEmitted(name, concepts.Len())
	}

	if opts.Preview != "" {
		res.PreviewPath = PreviewPath(owlPath, opts.Preview)
		exporter := export.NewExporter(ontologyIRI, opts.Prefixes)
		if err := exporter.ExportFile(buildBatch(), opts.Preview, res.PreviewPath); err != nil {
			res.fail(err)
			return res
		}
	}

	if opts.UseCache && exists(owlPath) {
		res.CachedOWL = true
		report.cacheHit(owlPath)
		p.metrics.RecordCacheHit("owl")
	} else {
		toolStart := time.Now()
		err := p.owl.Template(ctx, robot.Options{
			TemplatePath: res.TemplatePath,
			OntologyIRI:  ontologyIRI,
			OutputPath:   owlPath,
			Prefixes:     opts.Prefixes,
			MemoryGB:     opts.MemoryGB,
		})
		p.metrics.RecordTool("robot", time.Since(toolStart), err)
		if err != nil {
			res.fail(err)
			return res
		}
		if err := robot.RepairPrefixes(owlPath, opts.PrefixRepairs); err != nil {
			res.fail(errs.WrapTool(err, "pipeline", "RepairPrefixes"))
			return res
		}
	}

	if withDB {
		db, err := p.makeDB(ctx, owlPath, report)
		if err != nil {
			res.failDB(err)
			return res
		}
		res.DBPath = db
	}
	return res
}

// makeDB converts owlPath to SemanticSQL unless a cached database is reused.
func (p *Pipeline) makeDB(ctx context.Context, owlPath string, report *Report) (string, error) {
	dbPath := semsql.DBPath(owlPath)
	if p.opts.UseCache && exists(dbPath) {
		report.cacheHit(dbPath)
		p.metrics.RecordCacheHit("db")
		return dbPath, nil
	}
	if p.db == nil {
		return "", errs.WrapConfig(fmt.Errorf("%w: no SemanticSQL converter configured", errs.ErrInvalidConfig), "pipeline", "makeDB")
	}
	start := time.Now()
	db, err := p.db.Make(ctx, owlPath)
	p.metrics.RecordTool("semsql", time.Since(start), err)
	return db, err
}

// stitch merges the successful partition outputs into merged.
func (p *Pipeline) stitch(merged string, parts []Result) error {
	p.logger.Info("Joining partition outputs", "path", merged, "partitions", len(parts))
	names := make([]string, len(parts))
	paths := make([]string, len(parts))
	for i, r := range parts {
		names[i] = r.Name
		paths[i] = r.Path
	}
	if err := owlmerge.StitchFiles(merged, names, paths); err != nil {
		return errs.WrapData(err, "pipeline", "Stitch")
	}
	return nil
}

// finish stamps the report, records run metrics and writes the report file.
func (p *Pipeline) finish(report *Report, err error) {
	report.FinishedAt = time.Now().UTC()
	if err != nil {
		report.Error = err.Error()
	}
	p.metrics.RecordRun(report.Duration(), err == nil)
	if p.recorder != nil {
		report.Tools = p.recorder.Records()
	}

	for _, name := range report.Skipped() {
		p.logger.Warn("Partition skipped", "partition", name)
	}
	for _, name := range report.DBFailed() {
		p.logger.Warn("Partition has no SemanticSQL database", "partition", name)
	}

	path := ReportPath(report.MergedPath)
	if werr := report.WriteFile(path); werr != nil {
		p.logger.Warn("Failed to write report", "path", path, "error", werr)
		return
	}
	p.logger.Info("Run finished", "run_id", report.RunID, "duration", report.Duration(), "report", path)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
