package inspect

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	vocab "github.com/c360studio/omop2owl/vocabulary/omop"
)

// DBSummary describes a SemanticSQL database.
type DBSummary struct {
	Path       string         `json:"path"`
	Statements int            `json:"statements"`
	Classes    int            `json:"classes"`
	SubClassOf int            `json:"subclass_of"`
	Predicates map[string]int `json:"predicates"`
}

// SummarizeDB opens the SemanticSQL database at path read-only and counts
// the rows of its statements table.
func SummarizeDB(ctx context.Context, path string) (DBSummary, error) {
	if _, err := os.Stat(path); err != nil {
		return DBSummary{}, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return DBSummary{}, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	defer db.Close()

	s := DBSummary{Path: path, Predicates: make(map[string]int)}

	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM statements`).Scan(&s.Statements); err != nil {
		return DBSummary{}, fmt.Errorf("count statements: %w", err)
	}
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT subject) FROM statements WHERE predicate = ? AND object = ?`,
		"rdf:type", "owl:Class",
	).Scan(&s.Classes); err != nil {
		return DBSummary{}, fmt.Errorf("count classes: %w", err)
	}
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM statements WHERE predicate = ?`, vocab.SubClassOf,
	).Scan(&s.SubClassOf); err != nil {
		return DBSummary{}, fmt.Errorf("count subclass axioms: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT predicate, COUNT(*) FROM statements GROUP BY predicate`)
	if err != nil {
		return DBSummary{}, fmt.Errorf("count predicates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pred sql.NullString
		var n int
		if err := rows.Scan(&pred, &n); err != nil {
			return DBSummary{}, fmt.Errorf("scan predicate: %w", err)
		}
		s.Predicates[pred.String] = n
	}
	if err := rows.Err(); err != nil {
		return DBSummary{}, fmt.Errorf("iterate predicates: %w", err)
	}
	return s, nil
}
