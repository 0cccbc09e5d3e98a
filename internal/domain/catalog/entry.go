// Package catalog holds the distinct column values a shard indexes.
package catalog

import (
	"fmt"
	"strings"
)

// MaxIDLength bounds catalog identifiers; they become file name prefixes.
const MaxIDLength = 128

// Entry is one distinct value observed in one column of one table.
type Entry struct {
	table  string
	column string
	value  string
}

// NewEntry creates a catalog entry.
func NewEntry(table, column, value string) Entry {
	return Entry{table: table, column: column, value: value}
}

// Table returns the table name.
func (e Entry) Table() string { return e.table }

// Column returns the column name.
func (e Entry) Column() string { return e.column }

// Value returns the literal stored value.
func (e Entry) Value() string { return e.value }

func (e Entry) String() string {
	return fmt.Sprintf("%s.%s=%q", e.table, e.column, e.value)
}

// ValidateID rejects catalog ids that would escape the shard directory
// or be interpreted as a file pattern.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("catalog id is required")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("catalog id too long (max %d chars)", MaxIDLength)
	}
	if strings.ContainsAny(id, `/\*?[]`) || id == "." || id == ".." {
		return fmt.Errorf("catalog id %q contains path or pattern characters", id)
	}
	return nil
}
