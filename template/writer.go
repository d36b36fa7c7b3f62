package template

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteTSV writes the header row, the ROBOT directive row and the records,
// tab separated.
func WriteTSV(w io.Writer, b Batch) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	header := make([]string, len(b.Columns))
	directives := make([]string, len(b.Columns))
	for i, col := range b.Columns {
		header[i] = col.Name
		directives[i] = col.Directive
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.Write(directives); err != nil {
		return fmt.Errorf("write directives: %w", err)
	}
	for _, rec := range b.Records {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the batch to path via a temporary file and rename.
func WriteFile(path string, b Batch) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := WriteTSV(bw, b); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush template: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close template: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename template: %w", err)
	}
	return nil
}
