package listview

import (
	"slices"
	"strings"
)

// Derive filters and sorts records into a new slice. The input is never
// modified and the sort is stable, so records with equal sort values keep
// their collection order in both directions.
func Derive[T any](records []T, schema Schema[T], filter FilterSpec, sort SortSpec) []T {
	term := strings.ToLower(strings.TrimSpace(filter.Search))

	derived := make([]T, 0, len(records))
	for _, record := range records {
		if schema.Scope != nil && !schema.Scope(record) {
			continue
		}
		if !matchesSearch(record, schema.Search, term) {
			continue
		}
		if !matchesCategories(record, schema.Categories, filter) {
			continue
		}
		derived = append(derived, record)
	}

	accessor, ok := schema.Sorts[sort.Field]
	if !ok {
		return derived
	}
	sign := 1
	if sort.Direction == Descending {
		sign = -1
	}
	slices.SortStableFunc(derived, func(a, b T) int {
		return sign * compareValues(accessor(a), accessor(b))
	})
	return derived
}

func matchesSearch[T any](record T, fields []func(T) string, term string) bool {
	if term == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field(record)), term) {
			return true
		}
	}
	return false
}

func matchesCategories[T any](record T, categories map[string]Accessor[T], filter FilterSpec) bool {
	for name, accessor := range categories {
		selected := filter.Selection(name)
		if selected == All {
			continue
		}
		value := accessor(record)
		if !value.Defined() || value.String() != selected {
			return false
		}
	}
	return true
}
