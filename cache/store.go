// Package cache stores the filtered concept set and relationship map of a
// run on the local filesystem, keyed by a hash of the run parameters.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/c360studio/omop2owl/omop"
	"github.com/c360studio/omop2owl/relmap"
)

// Key identifies a cache entry.
type Key struct {
	Stem              string
	Vocabularies      []string
	Relationships     []string
	ExcludeSingletons bool
}

// Hash returns the hex sha256 digest of the key. Fields are length-prefixed
// so that distinct keys never share an encoding.
func (k Key) Hash() string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(strconv.Itoa(len(s))))
		h.Write([]byte{':'})
		h.Write([]byte(s))
	}
	write(k.Stem)
	write(strconv.Itoa(len(k.Vocabularies)))
	for _, v := range k.Vocabularies {
		write(v)
	}
	write(strconv.Itoa(len(k.Relationships)))
	for _, r := range k.Relationships {
		write(r)
	}
	write(strconv.FormatBool(k.ExcludeSingletons))
	return hex.EncodeToString(h.Sum(nil))
}

// Entry is a cached filter and mapping result.
type Entry struct {
	Key       string          `json:"key"`
	Concepts  []omop.Concept  `json:"concepts"`
	Relations relmap.Snapshot `json:"relations"`
	CreatedAt time.Time       `json:"created_at"`
}

// ConceptTable rebuilds the concept table of the entry.
func (e *Entry) ConceptTable() (*omop.ConceptTable, error) {
	return omop.NewConceptTable(e.Concepts)
}

// Map rebuilds the relationship map of the entry.
func (e *Entry) Map() *relmap.Map {
	return relmap.FromSnapshot(e.Relations)
}

// Store is a directory of JSON cache entries.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(key Key) string {
	return filepath.Join(s.dir, key.Hash()+".json")
}

// Load reads the entry for key. It returns ErrNotFound when none exists.
func (s *Store) Load(key Key) (*Entry, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read cache entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal cache entry: %w", err)
	}
	return &entry, nil
}

// Save writes the concepts and relationship map under key.
func (s *Store) Save(key Key, concepts *omop.ConceptTable, m *relmap.Map) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	entry := Entry{
		Key:       key.Hash(),
		Concepts:  concepts.Rows(),
		Relations: m.Snapshot(),
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}
