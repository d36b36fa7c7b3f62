package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/c360studio/omop2owl/errs"
	"github.com/c360studio/omop2owl/export"
	"github.com/c360studio/omop2owl/relmap"
	vocab "github.com/c360studio/omop2owl/vocabulary/omop"
)

// Mode selects which outputs a run produces.
type Mode string

// Output modes.
const (
	// ModeMerged converts all surviving concepts as one batch.
	ModeMerged Mode = "merged"

	// ModeSplit converts each vocabulary partition separately.
	ModeSplit Mode = "split"

	// ModeMergedPostSplit converts each partition and stitches the results.
	ModeMergedPostSplit Mode = "merged-post-split"

	// ModeRxNorm is a preset for RxNorm and ATC with their hierarchy relationships.
	ModeRxNorm Mode = "rxnorm"
)

// Modes lists the valid modes.
var Modes = []Mode{ModeMerged, ModeSplit, ModeMergedPostSplit, ModeRxNorm}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !slices.Contains(Modes, m) {
		return "", errs.WrapConfig(fmt.Errorf("%w: unknown output type %q", errs.ErrInvalidConfig, s), "pipeline", "ParseMode")
	}
	return m, nil
}

// Preset vocabularies and relationships of ModeRxNorm.
var (
	RxNormVocabularies  = []string{"RxNorm", "ATC"}
	RxNormRelationships = []string{vocab.RelIsA, vocab.RelMapsTo, vocab.RelRxNormInverseIsA}
)

// Defaults.
const (
	DefaultOntologyID = "OMOP"
	DefaultMemoryGB   = 100
	DefaultMode       = ModeMergedPostSplit
)

// Options configures a run.
type Options struct {
	ConceptCSV      string
	RelationshipCSV string
	OutDir          string
	OntologyID      string
	Mode            Mode

	// Vocabularies restricts concepts to these vocabulary IDs. When set the
	// run is a single batch regardless of Mode.
	Vocabularies []string

	// Relationships lists the relationship labels to include, or [ALL].
	Relationships []string

	SkipSemSQL        bool
	ExcludeSingletons bool
	UseCache          bool

	// Preview also writes a tool-free RDF preview in this format next to
	// each output. Empty disables it.
	Preview export.Format

	// MemoryGB is the Java heap given to ROBOT.
	MemoryGB int

	Prefixes      map[string]string
	PrefixRepairs map[string]string
	Relmap        relmap.Config

	// PartitionOrder compares raw vocabulary IDs and fixes the order of
	// partitions. Nil sorts by vocabulary ID.
	PartitionOrder func(a, b string) int
}

// DefaultOptions returns options with the standard defaults and no inputs.
func DefaultOptions() Options {
	return Options{
		OntologyID:    DefaultOntologyID,
		Mode:          DefaultMode,
		Relationships: []string{vocab.RelIsA},
		MemoryGB:      DefaultMemoryGB,
		Prefixes:      vocab.DefaultPrefixes(),
		PrefixRepairs: vocab.DefaultPrefixRepairs(),
		Relmap:        relmap.DefaultConfig(),
	}
}

// resolved applies the mode preset and fills unset fields with defaults.
func (o Options) resolved() Options {
	d := DefaultOptions()
	if o.Mode == "" {
		o.Mode = d.Mode
	}
	if o.Mode == ModeRxNorm {
		o.Vocabularies = slices.Clone(RxNormVocabularies)
		o.Relationships = slices.Clone(RxNormRelationships)
	}
	if o.OntologyID == "" {
		o.OntologyID = d.OntologyID
	}
	if len(o.Relationships) == 0 {
		o.Relationships = d.Relationships
	}
	if o.Prefixes == nil {
		o.Prefixes = d.Prefixes
	}
	if o.PrefixRepairs == nil {
		o.PrefixRepairs = d.PrefixRepairs
	}
	if o.Relmap.Namespace == "" {
		o.Relmap = d.Relmap
	}
	if o.OutDir == "" {
		o.OutDir = "."
	}
	return o
}

// Validate checks required inputs and option consistency.
func (o Options) Validate() error {
	if o.ConceptCSV == "" || o.RelationshipCSV == "" {
		return errs.WrapConfig(
			fmt.Errorf("%w: both --concept-csv-path and --concept-relationship-csv-path are required", errs.ErrMissingInput),
			"pipeline", "Validate")
	}
	for _, p := range []string{o.ConceptCSV, o.RelationshipCSV} {
		info, err := os.Stat(p)
		if err != nil {
			return errs.WrapConfig(fmt.Errorf("%w: %v", errs.ErrMissingInput, err), "pipeline", "Validate")
		}
		if info.IsDir() {
			return errs.WrapConfig(fmt.Errorf("%w: %s is a directory", errs.ErrMissingInput, p), "pipeline", "Validate")
		}
	}
	if o.Mode != "" && !slices.Contains(Modes, o.Mode) {
		return errs.WrapConfig(fmt.Errorf("%w: unknown output type %q", errs.ErrInvalidConfig, o.Mode), "pipeline", "Validate")
	}
	if o.Preview != "" {
		if _, ok := export.GetFormatInfo(o.Preview); !ok {
			return errs.WrapConfig(fmt.Errorf("%w: unknown preview format %q", errs.ErrInvalidConfig, o.Preview), "pipeline", "Validate")
		}
	}
	if o.MemoryGB < 0 {
		return errs.WrapConfig(fmt.Errorf("%w: memory must not be negative", errs.ErrInvalidConfig), "pipeline", "Validate")
	}
	if len(o.Relationships) > 1 && slices.Contains(o.Relationships, relmap.All) {
		return errs.WrapConfig(
			fmt.Errorf("%w: %s cannot be combined with other relationships", errs.ErrConflictingOptions, relmap.All),
			"pipeline", "Validate")
	}
	return nil
}

// singleBatch reports whether the run converts one batch instead of
// per-vocabulary partitions.
func (o Options) singleBatch() bool {
	return len(o.Vocabularies) > 0 || o.Mode == ModeMerged || o.Mode == ModeRxNorm
}

// FileSafe replaces spaces, which SemanticSQL rejects in file names.
func FileSafe(name string) string {
	return strings.ReplaceAll(name, " ", "-")
}

// MergedPath returns the path of the merged (or single batch) OWL output.
// Without vocabularies it is <id>.owl; with RxNorm among fewer than three
// vocabularies it is <id>-RxNorm.owl; otherwise the vocabularies are joined
// into the name.
func MergedPath(outDir, ontologyID string, vocabularies []string) string {
	name := ontologyID
	switch {
	case len(vocabularies) == 0:
	case slices.Contains(vocabularies, "RxNorm") && len(vocabularies) < 3:
		name += "-RxNorm"
	default:
		name += "-" + strings.Join(vocabularies, "-")
	}
	return filepath.Join(outDir, FileSafe(name+".owl"))
}

// TemplatePath returns the ROBOT template path of an OWL output.
func TemplatePath(owlPath string) string {
	return strings.TrimSuffix(owlPath, ".owl") + ".robot.template.tsv"
}

// PreviewPath returns the path of the preview of an OWL output in format.
func PreviewPath(owlPath string, format export.Format) string {
	ext := "." + string(format)
	if info, ok := export.GetFormatInfo(format); ok {
		ext = info.Extension
	}
	return strings.TrimSuffix(owlPath, ".owl") + ext
}

// ReportPath returns the run report path of an OWL output.
func ReportPath(owlPath string) string {
	return strings.TrimSuffix(owlPath, ".owl") + ".report.json"
}

// stem returns the file name of an OWL output without extension.
func stem(owlPath string) string {
	return strings.TrimSuffix(filepath.Base(owlPath), ".owl")
}
