// Package owlmerge stitches RDF/XML ontology documents produced for
// separate partitions into one document.
package owlmerge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/c360studio/omop2owl/errs"
)

// footerMarker opens the footer of an RDF/XML document.
const footerMarker = "</rdf:RDF>"

// headerPattern matches everything up to and including the end of the
// ontology declaration element.
var headerPattern = regexp.MustCompile(`^[\s\S]*?ontology"/>`)

// BoundaryError reports a document whose header or footer could not be found.
type BoundaryError struct {
	Partition string
	Reason    string
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("partition %s: %s", e.Partition, e.Reason)
}

// Unwrap returns errs.ErrMergeBoundary.
func (e *BoundaryError) Unwrap() error {
	return errs.ErrMergeBoundary
}

// Document is one partition's RDF/XML output.
type Document struct {
	Partition string
	Content   string
}

// Split divides an RDF/XML document into header, body and footer.
func Split(doc Document) (header, body, footer string, err error) {
	loc := headerPattern.FindStringIndex(doc.Content)
	if loc == nil {
		return "", "", "", &BoundaryError{Partition: doc.Partition, Reason: "ontology header not found"}
	}
	rest := doc.Content[loc[1]:]
	idx := strings.Index(rest, footerMarker)
	if idx < 0 {
		return "", "", "", &BoundaryError{Partition: doc.Partition, Reason: "closing " + footerMarker + " not found"}
	}
	return doc.Content[:loc[1]], rest[:idx], rest[idx:], nil
}

// Stitch writes the header of the first document, the bodies of all
// documents in order and the footer of the last document to w. Every
// document is split before anything is written.
func Stitch(w io.Writer, docs []Document) error {
	if len(docs) == 0 {
		return errors.New("no documents to stitch")
	}

	bodies := make([]string, len(docs))
	var header, footer string
	for i, doc := range docs {
		h, b, f, err := Split(doc)
		if err != nil {
			return err
		}
		if i == 0 {
			header = h
		}
		footer = f
		bodies[i] = b
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(header)
	for _, b := range bodies {
		bw.WriteString(b)
	}
	bw.WriteString(footer)
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write merged document: %w", err)
	}
	return nil
}

// StitchFiles reads the partition documents from paths (keyed by partition
// name, in order) and stitches them into out. The partial output is removed
// when stitching fails.
func StitchFiles(out string, partitions []string, paths []string) (err error) {
	if len(partitions) != len(paths) {
		return fmt.Errorf("stitch: %d partitions but %d paths", len(partitions), len(paths))
	}

	docs := make([]Document, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read partition %s: %w", partitions[i], err)
		}
		docs[i] = Document{Partition: partitions[i], Content: string(data)}
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create merged file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close merged file: %w", cerr)
		}
		if err != nil {
			os.Remove(out)
		}
	}()

	return Stitch(f, docs)
}
