package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	grounder "github.com/ShikharMathco/merck-agentic-poc/pkg/sdk"
)

// readBufferRows is the number of rows fetched per ReadRows call.
const readBufferRows = 1000

// tableFiles returns the *.parquet files of dataDir, sorted. Each file holds
// one table named after the file.
func tableFiles(dataDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.parquet"))
	if err != nil {
		return nil, fmt.Errorf("glob parquet files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no parquet files found in %s", dataDir)
	}
	sort.Strings(files)
	return files, nil
}

func tableName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// distinctReader collects distinct column values of one table file.
type distinctReader struct {
	// columns restricts reading to these top-level columns; empty means
	// every top-level string column.
	columns map[string]bool
	// maxPerColumn caps distinct values per column; 0 = unlimited.
	maxPerColumn int
}

// Read returns the distinct non-empty values of the selected columns of the
// table file at path, in first-seen order.
func (r distinctReader) Read(path string) ([]grounder.Entry, error) {
	h, err := openParquet(path)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	table := tableName(path)
	cols := r.resolveColumns(h.pf)
	if len(cols) == 0 {
		return nil, nil
	}

	seen := make(map[int]map[string]struct{}, len(cols))
	for idx := range cols {
		seen[idx] = make(map[string]struct{})
	}

	var entries []grounder.Entry
	buf := make([]parquet.Row, readBufferRows)
	for _, rg := range h.pf.RowGroups() {
		rows := parquet.NewRowGroupReader(rg)
		for {
			n, readErr := rows.ReadRows(buf)
			for i := 0; i < n; i++ {
				for _, v := range buf[i] {
					name, ok := cols[v.Column()]
					if !ok || v.IsNull() {
						continue
					}
					s := strings.TrimSpace(v.String())
					values := seen[v.Column()]
					if s == "" || (r.maxPerColumn > 0 && len(values) >= r.maxPerColumn) {
						continue
					}
					if _, dup := values[s]; dup {
						continue
					}
					values[s] = struct{}{}
					entries = append(entries, grounder.Entry{Table: table, Column: name, Value: s})
				}
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				return nil, fmt.Errorf("read rows: %w", readErr)
			}
		}
	}
	return entries, nil
}

// resolveColumns maps leaf column indexes to column names. Nested and
// repeated columns are skipped.
func (r distinctReader) resolveColumns(pf *parquet.File) map[int]string {
	schema := pf.Schema()
	out := make(map[int]string)
	for i, path := range schema.Columns() {
		if len(path) != 1 {
			continue
		}
		name := path[0]
		if len(r.columns) > 0 {
			if r.columns[name] {
				out[i] = name
			}
			continue
		}
		leaf, ok := schema.Lookup(path...)
		if ok && leaf.MaxRepetitionLevel == 0 && leaf.Node.Type().Kind() == parquet.ByteArray {
			out[i] = name
		}
	}
	return out
}

// parquetHandle wraps parquet.File + underlying os.File for proper cleanup.
type parquetHandle struct {
	pf   *parquet.File
	file *os.File
}

func (h *parquetHandle) Close() {
	_ = h.file.Close()
}

func openParquet(path string) (*parquetHandle, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	return &parquetHandle{pf: pf, file: f}, nil
}
