package task

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CatalogFile is the top-level structure of a bleai task catalog YAML file.
//
// Example:
//
//	catalog:
//	  name: "Sales onboarding"
//	tasks:
//	  - id: discovery-call-101
//	    title: "Discovery call basics"
//	    rubric: "Did the rep ask open questions before pitching?"
//	    vocabulary: ["Meridian", "Brightline Analytics Suite"]
type CatalogFile struct {
	Catalog CatalogMeta `yaml:"catalog"`
	Tasks   []Task      `yaml:"tasks"`
}

// CatalogMeta holds top-level metadata for a catalog file.
type CatalogMeta struct {
	// Name is the catalog's display name.
	Name string `yaml:"name"`

	// Description is a free-text summary of the catalog.
	Description string `yaml:"description"`
}

// LoadCatalogFile reads and parses a task catalog YAML file from disk.
// Returns a descriptive error if the file cannot be opened or parsed.
func LoadCatalogFile(path string) (*CatalogFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("task: open catalog file %q: %w", path, err)
	}
	defer f.Close()

	cf, err := LoadCatalogFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("task: parse catalog file %q: %w", path, err)
	}
	return cf, nil
}

// LoadCatalogFromReader parses catalog YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadCatalogFromReader(r io.Reader) (*CatalogFile, error) {
	var cf CatalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos in authored files
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("task: decode catalog yaml: %w", err)
	}
	return &cf, nil
}

// ImportCatalog upserts all tasks from a parsed [CatalogFile] into store.
// Every task must carry an explicit ID so that re-importing the same file
// replaces tasks instead of duplicating them.
// Returns the number of tasks successfully imported.
// An error aborts the import and returns the count so far.
func ImportCatalog(ctx context.Context, store Store, catalog *CatalogFile) (int, error) {
	if catalog == nil {
		return 0, fmt.Errorf("task: catalog must not be nil")
	}
	count := 0
	for i, t := range catalog.Tasks {
		if t.ID == "" {
			return count, fmt.Errorf("task: import catalog %q: task at index %d (title %q) has no id", catalog.Catalog.Name, i, t.Title)
		}
		if _, err := store.Upsert(ctx, t); err != nil {
			return count, fmt.Errorf("task: import catalog %q: task %q: %w", catalog.Catalog.Name, t.ID, err)
		}
		count++
	}
	return count, nil
}

// ImportDir loads every catalog file (*.yaml, *.yml) in dir and imports it
// into store. Files are processed in lexical order; other files and
// subdirectories are ignored.
// Returns the total number of tasks imported across all files.
func ImportDir(ctx context.Context, store Store, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("task: read catalog dir %q: %w", dir, err)
	}

	total := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		cf, err := LoadCatalogFile(path)
		if err != nil {
			return total, err
		}
		n, err := ImportCatalog(ctx, store, cf)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
