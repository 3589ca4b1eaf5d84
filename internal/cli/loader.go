package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/redpath/internal/compiler"
	"github.com/roach88/redpath/internal/query"
)

// LoadMode controls how errors are handled during query loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the queries loaded from a directory.
type LoadResult struct {
	Queries   []query.Query
	FileCount int // Number of query files found
}

// LoadQueries loads query files from a directory. Each .cue file is one
// query document compiled through the CUE SDK; each .yaml/.yml file is
// one query document in the wire form. Files load in name order so the
// result is reproducible.
func LoadQueries(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{fmt.Errorf("queries directory not found: %s", dir)}
	}
	if err != nil {
		return nil, []error{fmt.Errorf("access queries directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, []error{fmt.Errorf("not a directory: %s", dir)}
	}

	files, err := findQueryFiles(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("scan directory: %w", err)}
	}
	if len(files) == 0 {
		return nil, []error{fmt.Errorf("no query files (.cue, .yaml) found in %s", dir)}
	}

	result := &LoadResult{FileCount: len(files)}
	var errs []error

	for _, file := range files {
		q, fileErrs := loadQueryFile(file)
		if len(fileErrs) > 0 {
			errs = append(errs, fileErrs...)
			if mode == LoadModeFailFast {
				return result, errs
			}
		}
		if q != nil {
			result.Queries = append(result.Queries, *q)
		}
	}

	return result, errs
}

// findQueryFiles lists query files in dir, sorted by name.
func findQueryFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".cue", ".yaml", ".yml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// loadQueryFile parses one query file by extension.
func loadQueryFile(path string) (*query.Query, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("read %s: %w", path, err)}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return loadCUEQuery(path, data)
	case ".yaml", ".yml":
		return loadYAMLQuery(path, data)
	default:
		return nil, []error{fmt.Errorf("unsupported query file: %s", path)}
	}
}

// loadCUEQuery compiles a CUE query document.
func loadCUEQuery(path string, data []byte) (*query.Query, []error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data)
	if err := v.Err(); err != nil {
		return nil, []error{fmt.Errorf("%s: %w", path, err)}
	}
	q, errs := compiler.CompileQuery(v)
	for i, err := range errs {
		errs[i] = fmt.Errorf("%s: %w", path, err)
	}
	return q, errs
}

// yamlQuery is the wire form of a query document in YAML.
type yamlQuery struct {
	QueryID    string                  `yaml:"query_id"`
	Subqueries map[string]yamlSubquery `yaml:"subqueries"`
}

type yamlSubquery struct {
	Path            string         `yaml:"path"`
	RootSubqueryIDs []string       `yaml:"root_subquery_ids"`
	Properties      []yamlProperty `yaml:"properties"`
}

type yamlProperty struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// loadYAMLQuery decodes a YAML query document.
func loadYAMLQuery(path string, data []byte) (*query.Query, []error) {
	var doc yamlQuery
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, []error{fmt.Errorf("%s: %w", path, err)}
	}
	if doc.QueryID == "" {
		return nil, []error{fmt.Errorf("%s: query_id is required", path)}
	}

	q := &query.Query{ID: doc.QueryID}
	var errs []error

	// Subquery ids sort so declaration order is reproducible from a map.
	ids := make([]string, 0, len(doc.Subqueries))
	for id := range doc.Subqueries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		ysq := doc.Subqueries[id]
		sq := query.Subquery{
			ID:              id,
			Path:            ysq.Path,
			RootSubqueryIDs: ysq.RootSubqueryIDs,
		}
		ok := true
		for _, yp := range ysq.Properties {
			primitive, err := query.ParsePrimitive(yp.Type)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: subquery %q property %q: %w", path, id, yp.Path, err))
				ok = false
				break
			}
			sq.Properties = append(sq.Properties, query.Property{
				Path: yp.Path,
				Name: yp.Name,
				Type: primitive,
			})
		}
		if ok {
			q.Subqueries = append(q.Subqueries, sq)
		}
	}

	return q, errs
}
