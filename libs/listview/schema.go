package listview

import (
	"errors"
	"fmt"
	"strings"
)

// All is the categorical selection that never excludes a record.
const All = "all"

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseDirection maps any input other than "desc" to Ascending.
func ParseDirection(raw string) Direction {
	if strings.EqualFold(strings.TrimSpace(raw), string(Descending)) {
		return Descending
	}
	return Ascending
}

// Opposite returns the reversed direction.
func (d Direction) Opposite() Direction {
	if d == Descending {
		return Ascending
	}
	return Descending
}

// FilterSpec is a free-text search term plus categorical selections keyed by
// category name.
type FilterSpec struct {
	Search     string
	Categories map[string]string
}

// Selection returns the normalized selection for a category. Empty and
// unknown selections read as All.
func (f FilterSpec) Selection(category string) string {
	value := strings.TrimSpace(f.Categories[category])
	if value == "" {
		return All
	}
	return value
}

// Equal reports whether two filters select the same records.
func (f FilterSpec) Equal(other FilterSpec) bool {
	if strings.TrimSpace(f.Search) != strings.TrimSpace(other.Search) {
		return false
	}
	for key := range f.Categories {
		if f.Selection(key) != other.Selection(key) {
			return false
		}
	}
	for key := range other.Categories {
		if f.Selection(key) != other.Selection(key) {
			return false
		}
	}
	return true
}

func (f FilterSpec) clone() FilterSpec {
	categories := make(map[string]string, len(f.Categories))
	for key, value := range f.Categories {
		categories[key] = value
	}
	return FilterSpec{Search: f.Search, Categories: categories}
}

// SortSpec names the active sort field and its direction.
type SortSpec struct {
	Field     string
	Direction Direction
}

// Toggle returns the sort that results from clicking field's sort control:
// the active field flips direction, any other field becomes active ascending.
func (s SortSpec) Toggle(field string) SortSpec {
	if s.Field == field {
		return SortSpec{Field: field, Direction: s.Direction.Opposite()}
	}
	return SortSpec{Field: field, Direction: Ascending}
}

// PageSpec selects one page of a derived view. CurrentPage is 1-based.
type PageSpec struct {
	ItemsPerPage int
	CurrentPage  int
}

// Accessor extracts a typed value from a record.
type Accessor[T any] func(T) Value

// Schema describes how a record type is searched, filtered and sorted.
type Schema[T any] struct {
	// ID returns the record identifier, unique within one snapshot.
	ID func(T) string
	// Search lists the fields matched by free-text search.
	Search []func(T) string
	// Categories maps category names to the field they constrain.
	Categories map[string]Accessor[T]
	// Sorts maps sortable field names to their extractor.
	Sorts       map[string]Accessor[T]
	DefaultSort SortSpec
	// Scope keeps only records belonging to the screen's classification.
	// Nil keeps everything.
	Scope func(T) bool
}

// Validate checks the schema for wiring mistakes.
func (s Schema[T]) Validate() error {
	if s.ID == nil {
		return errors.New("listview: schema requires an ID accessor")
	}
	for name, accessor := range s.Categories {
		if accessor == nil {
			return fmt.Errorf("listview: category %q has no accessor", name)
		}
	}
	for name, accessor := range s.Sorts {
		if accessor == nil {
			return fmt.Errorf("listview: sort field %q has no accessor", name)
		}
	}
	if s.DefaultSort.Field != "" {
		if _, ok := s.Sorts[s.DefaultSort.Field]; !ok {
			return fmt.Errorf("listview: default sort field %q is not sortable", s.DefaultSort.Field)
		}
	}
	return nil
}

// Sortable reports whether field is a known sort field.
func (s Schema[T]) Sortable(field string) bool {
	_, ok := s.Sorts[field]
	return ok
}
