package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/omop2owl/errs"
	"github.com/c360studio/omop2owl/pipeline"
	"github.com/c360studio/omop2owl/tools/runner"
)

const testConcepts = "concept_id\tconcept_name\tdomain_id\tvocabulary_id\tconcept_class_id\tstandard_concept\tconcept_code\tvalid_start_date\tvalid_end_date\tinvalid_reason\n" +
	"1\tAspirin\tDrug\tRxNorm\tIngredient\tS\t1191\t19700101\t20991231\t\n" +
	"2\tAnalgesic\tDrug\tATC\tATC 4th\tC\tN02B\t19700101\t20991231\t\n"

const testRelationships = "concept_id_1\tconcept_id_2\trelationship_id\tvalid_start_date\tvalid_end_date\tinvalid_reason\n" +
	"1\t2\tIs a\t19700101\t20991231\t\n"

// fakeTools answers robot by writing a minimal ontology to --output and
// records every command. Docker runs building failDB exit non-zero.
type fakeTools struct {
	mu       sync.Mutex
	failDB   string
	commands []runner.Command
}

func (f *fakeTools) Run(ctx context.Context, cmd runner.Command) (runner.Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	if cmd.Name == "docker" && f.failDB != "" && slices.Contains(cmd.Args, f.failDB) {
		return runner.Result{Stderr: "semsql crashed"}, &runner.ExitError{Command: cmd, Err: errors.New("exit status 1"), Stderr: "semsql crashed"}
	}
	if cmd.Name != "robot" {
		return runner.Result{}, nil
	}
	i := slices.Index(cmd.Args, "--output")
	iri := cmd.Args[slices.Index(cmd.Args, "--ontology-iri")+1]
	doc := `<?xml version="1.0"?>
<rdf:RDF xmlns:owl="http://www.w3.org/2002/07/owl#" xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
    <owl:Ontology rdf:about="` + iri + `"/>
</rdf:RDF>
`
	return runner.Result{}, os.WriteFile(cmd.Args[i+1], []byte(doc), 0644)
}

func (f *fakeTools) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, c := range f.commands {
		names = append(names, c.Name)
	}
	return names
}

// setup isolates the config loader from the user's home directory and
// writes the input tables.
func setup(t *testing.T) (concepts, rels, out string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	concepts = filepath.Join(dir, "CONCEPT.csv")
	rels = filepath.Join(dir, "CONCEPT_RELATIONSHIP.csv")
	require.NoError(t, os.WriteFile(concepts, []byte(testConcepts), 0644))
	require.NoError(t, os.WriteFile(rels, []byte(testRelationships), 0644))
	return concepts, rels, filepath.Join(dir, "out")
}

func execute(t *testing.T, tools runner.Runner, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd(tools)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, &fakeTools{}, "version")
	require.NoError(t, err)
	assert.Equal(t, "omop2owl version 0.1.0 (build: dev)\n", out)
}

func TestMissingInputs(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tools := &fakeTools{}

	_, err := execute(t, tools, "--concept-csv-path", "CONCEPT.csv")
	require.Error(t, err)
	assert.True(t, errs.IsConfig(err))
	assert.ErrorIs(t, err, errs.ErrMissingInput)
	assert.Empty(t, tools.names(), "no tool runs before inputs are checked")
}

func TestConflictingFlags(t *testing.T) {
	concepts, rels, out := setup(t)

	_, err := execute(t, &fakeTools{}, "-c", concepts, "-r", rels, "-O", out, "--semsql-only", "--skip-semsql")
	assert.ErrorIs(t, err, errs.ErrConflictingOptions)
}

func TestInvalidOutputType(t *testing.T) {
	concepts, rels, out := setup(t)

	_, err := execute(t, &fakeTools{}, "-c", concepts, "-r", rels, "-O", out, "-o", "everything")
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestRunMerged(t *testing.T) {
	concepts, rels, out := setup(t)
	tools := &fakeTools{}
	metricsFile := filepath.Join(out, "omop2owl.prom")

	_, err := execute(t, tools,
		"-c", concepts, "-r", rels, "-O", out,
		"-o", "merged", "-S", "-I", "TEST", "-M", "8",
		"--metrics-file", metricsFile,
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"robot"}, tools.names())
	assert.Contains(t, tools.commands[0].Env, "ROBOT_JAVA_ARGS=-Xmx8G")
	assert.FileExists(t, filepath.Join(out, "TEST.owl"))
	assert.FileExists(t, filepath.Join(out, "TEST.robot.template.tsv"))

	data, err := os.ReadFile(filepath.Join(out, "TEST.report.json"))
	require.NoError(t, err)
	var report pipeline.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, pipeline.ModeMerged, report.Mode)
	assert.Equal(t, 2, report.Concepts)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "omop2owl_concepts_loaded_total 2")
}

func TestRunSplitWithSemSQL(t *testing.T) {
	concepts, rels, out := setup(t)
	tools := &fakeTools{}

	_, err := execute(t, tools, "-c", concepts, "-r", rels, "-O", out, "-o", "split")
	require.NoError(t, err)

	// One robot and one docker run per vocabulary
	assert.Equal(t, []string{"robot", "docker", "robot", "docker"}, tools.names())
	assert.FileExists(t, filepath.Join(out, "ATC.owl"))
	assert.FileExists(t, filepath.Join(out, "RxNorm.owl"))
}

func TestRunSplitKeepsOWLWhenSemSQLFails(t *testing.T) {
	concepts, rels, out := setup(t)
	tools := &fakeTools{failDB: "RxNorm.db"}

	_, err := execute(t, tools, "-c", concepts, "-r", rels, "-O", out, "-o", "split")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(out, "RxNorm.owl"))
	data, err := os.ReadFile(filepath.Join(out, "OMOP.report.json"))
	require.NoError(t, err)
	var report pipeline.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Empty(t, report.Skipped())
	assert.Equal(t, []string{"RxNorm"}, report.DBFailed())

	require.Len(t, report.Tools, 4)
	statuses := make([]string, len(report.Tools))
	for i, rec := range report.Tools {
		statuses[i] = rec.Command.Name + ":" + rec.Status
	}
	assert.Equal(t, []string{"robot:success", "docker:success", "robot:success", "docker:error"}, statuses)
	assert.Equal(t, "semsql crashed", report.Tools[3].Stderr)
}

func TestPreviewFormat(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		file   string
		target error
	}{
		{name: "turtle shorthand", args: []string{"--turtle"}, file: "OMOP.ttl"},
		{name: "ntriples", args: []string{"--preview-format", "ntriples"}, file: "OMOP.nt"},
		{name: "turtle flag and format agree", args: []string{"--turtle", "--preview-format", "turtle"}, file: "OMOP.ttl"},
		{name: "unknown format", args: []string{"--preview-format", "jsonld"}, target: errs.ErrInvalidConfig},
		{name: "turtle flag and other format", args: []string{"--turtle", "--preview-format", "ntriples"}, target: errs.ErrConflictingOptions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			concepts, rels, out := setup(t)
			args := append([]string{"-c", concepts, "-r", rels, "-O", out, "-o", "merged", "-S"}, tt.args...)

			_, err := execute(t, &fakeTools{}, args...)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
				assert.Equal(t, exitConfig, exitCode(err))
				return
			}
			require.NoError(t, err)
			assert.FileExists(t, filepath.Join(out, tt.file))
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"config", errs.WrapConfig(errors.New("bad"), "cli", "run"), exitConfig},
		{"data sentinel", fmt.Errorf("x: %w", errs.ErrDuplicateConcept), exitData},
		{"tool", errs.WrapTool(errors.New("exit status 1"), "robot", "Template"), exitTool},
		{"unclassified", errors.New("unknown flag: --nope"), exitTool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestExitCodeForRuns(t *testing.T) {
	concepts, rels, out := setup(t)

	_, err := execute(t, &fakeTools{}, "-c", concepts)
	assert.Equal(t, exitConfig, exitCode(err))

	colliding := "concept_id\tconcept_name\tdomain_id\tvocabulary_id\tconcept_class_id\tstandard_concept\tconcept_code\tvalid_start_date\tvalid_end_date\tinvalid_reason\n" +
		"1\tOne\tDrug\tA B\tClass\tS\tc1\t19700101\t20991231\t\n" +
		"2\tTwo\tDrug\tA-B\tClass\tS\tc2\t19700101\t20991231\t\n"
	require.NoError(t, os.WriteFile(concepts, []byte(colliding), 0644))
	tools := &fakeTools{}
	_, err = execute(t, tools, "-c", concepts, "-r", rels, "-O", out, "-S")
	assert.ErrorIs(t, err, errs.ErrPartitionCollision)
	assert.Equal(t, exitData, exitCode(err))
	assert.Empty(t, tools.names())

	_, err = execute(t, &fakeTools{}, "--no-such-flag")
	assert.Equal(t, exitTool, exitCode(err))
}

func TestInitConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	want := filepath.Join(home, ".config", "omop2owl", "config.yaml")

	out, err := execute(t, &fakeTools{}, "init-config")
	require.NoError(t, err)
	assert.Equal(t, want+"\n", out)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ontology_id: OMOP")

	require.NoError(t, os.WriteFile(want, []byte("output:\n  mode: split\n"), 0644))
	_, err = execute(t, &fakeTools{}, "init-config")
	require.NoError(t, err)
	data, err = os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "output:\n  mode: split\n", string(data))
}

func TestHelpMatchesBehavior(t *testing.T) {
	cmd := rootCmd(&fakeTools{})

	usage := cmd.Flags().Lookup("exclude-singletons").Usage
	assert.True(t, strings.HasPrefix(usage, "Keep only concepts without any relationship"))

	assert.Equal(t, []string{"RxNorm", "ATC"}, pipeline.RxNormVocabularies)
	assert.Contains(t, cmd.Long, "rxnorm: RxNorm and ATC")
	assert.NotContains(t, cmd.Long, "RxNorm Extension")
}

func TestInstallOnly(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tools := &fakeTools{}

	_, err := execute(t, tools, "--install")
	require.NoError(t, err)

	require.Len(t, tools.commands, 1)
	assert.Equal(t, "docker", tools.commands[0].Name)
	assert.Equal(t, []string{"pull", "obolibrary/odkfull:dev"}, tools.commands[0].Args)
}

func TestInspectOWL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.owl")
	doc := `<?xml version="1.0"?>
<rdf:RDF xmlns:owl="http://www.w3.org/2002/07/owl#"
         xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:rdfs="http://www.w3.org/2000/01/rdf-schema#">
    <owl:Ontology rdf:about="http://purl.obolibrary.org/obo/TEST/ontology"/>
    <owl:Class rdf:about="https://athena.ohdsi.org/search-terms/terms/1">
        <rdfs:label>Aspirin</rdfs:label>
    </owl:Class>
</rdf:RDF>
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	out, err := execute(t, &fakeTools{}, "inspect", "--owl", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "{"))

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.EqualValues(t, 1, summary["classes"])
}

func TestInspectRequiresTarget(t *testing.T) {
	_, err := execute(t, &fakeTools{}, "inspect")
	assert.ErrorIs(t, err, errs.ErrMissingInput)

	_, err = execute(t, &fakeTools{}, "inspect", "--owl", "a.owl", "--db", "a.db")
	assert.ErrorIs(t, err, errs.ErrConflictingOptions)
}
