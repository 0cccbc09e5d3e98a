package grounder

import (
	"fmt"
	"strings"
)

// TypedCatalog collects the distinct column values of struct rows of one
// table and writes them as shards. Columns are inferred from T's struct tags
// at construction time:
//
//	type Order struct {
//	    ID     int64  // untagged, not indexed
//	    Status string `grounder:"status"`
//	    Region string `grounder:"region"`
//	}
//
//	cat, _ := grounder.NewCatalog[Order](client, "retail", "orders")
//	cat.Add(orders...)
//	_, _ = cat.Write(50000)
type TypedCatalog[T any] struct {
	client    *Client
	catalogID string
	table     string
	meta      *schemaMeta

	seen    map[string]map[string]struct{}
	entries []Entry
}

// NewCatalog creates a typed catalog handle for one table of catalogID.
func NewCatalog[T any](client *Client, catalogID, table string) (*TypedCatalog[T], error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, fmt.Errorf("new catalog %q: %w: table name required", catalogID, ErrInvalidInput)
	}
	meta, err := parseSchema[T]()
	if err != nil {
		return nil, fmt.Errorf("new catalog %q: %w", catalogID, err)
	}
	return &TypedCatalog[T]{
		client:    client,
		catalogID: catalogID,
		table:     table,
		meta:      meta,
		seen:      make(map[string]map[string]struct{}, len(meta.columns)),
	}, nil
}

// Add records the column values of items. Values already seen in the same
// column are skipped; comparison is exact.
func (c *TypedCatalog[T]) Add(items ...T) {
	for _, item := range items {
		for _, cv := range c.meta.values(item) {
			col, ok := c.seen[cv.column]
			if !ok {
				col = make(map[string]struct{})
				c.seen[cv.column] = col
			}
			if _, dup := col[cv.value]; dup {
				continue
			}
			col[cv.value] = struct{}{}
			c.entries = append(c.entries, Entry{Table: c.table, Column: cv.column, Value: cv.value})
		}
	}
}

// Len returns the number of distinct entries collected so far.
func (c *TypedCatalog[T]) Len() int { return len(c.entries) }

// Write persists the collected entries as shard chunks of at most chunkSize
// entries each. Numbering continues after the highest chunk already on disk
// for the catalog, so tables written through separate handles sit side by
// side. chunkSize <= 0 writes a single chunk. Returns the number of chunks
// written.
func (c *TypedCatalog[T]) Write(chunkSize int) (int, error) {
	if len(c.entries) == 0 {
		return 0, nil
	}
	if chunkSize <= 0 {
		chunkSize = len(c.entries)
	}
	first, err := c.client.NextChunk(c.catalogID)
	if err != nil {
		return 0, err
	}

	chunks := 0
	for start := 0; start < len(c.entries); start += chunkSize {
		end := min(start+chunkSize, len(c.entries))
		chunk := first + chunks
		if err := c.client.WriteShard(c.catalogID, chunk, c.entries[start:end]); err != nil {
			return chunks, fmt.Errorf("chunk %d: %w", chunk, err)
		}
		chunks++
	}
	return chunks, nil
}
