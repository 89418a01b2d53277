package listview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		count, perPage, want int
	}{
		{0, 10, 1},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{100, 25, 4},
		{101, 25, 5},
		{5, 0, 1},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.count, tt.perPage); got != tt.want {
			t.Fatalf("TotalPages(%d, %d) = %d, want %d", tt.count, tt.perPage, got, tt.want)
		}
	}
}

func TestPaginateReconstructsDerivedSequence(t *testing.T) {
	for _, count := range []int{0, 1, 9, 10, 11, 37} {
		derived := make([]int, count)
		for i := range derived {
			derived[i] = i
		}
		for _, perPage := range []int{1, 3, 10, 25} {
			total := TotalPages(count, perPage)
			var joined []int
			for page := 1; page <= total; page++ {
				p := Paginate(derived, PageSpec{ItemsPerPage: perPage, CurrentPage: page})
				assert.Equal(t, total, p.TotalPages)
				joined = append(joined, p.Items...)
			}
			if count == 0 {
				assert.Empty(t, joined)
				continue
			}
			assert.Equal(t, derived, joined, "count=%d perPage=%d", count, perPage)
		}
	}
}

func TestPaginateIndexes(t *testing.T) {
	derived := []string{"a", "b", "c", "d", "e"}

	page := Paginate(derived, PageSpec{ItemsPerPage: 2, CurrentPage: 3})
	assert.Equal(t, []string{"e"}, page.Items)
	assert.Equal(t, 4, page.StartIndex)
	assert.Equal(t, 5, page.EndIndex)

	page = Paginate(derived, PageSpec{ItemsPerPage: 2, CurrentPage: 9})
	assert.Empty(t, page.Items)
	assert.Equal(t, 5, page.StartIndex)
}

func TestClampPage(t *testing.T) {
	assert.Equal(t, 1, ClampPage(0, 4))
	assert.Equal(t, 4, ClampPage(9, 4))
	assert.Equal(t, 2, ClampPage(2, 4))
	assert.Equal(t, 1, ClampPage(3, 0))
}

func numbers(links []PageLink) []any {
	out := make([]any, 0, len(links))
	for _, link := range links {
		if link.Ellipsis {
			out = append(out, "...")
			continue
		}
		out = append(out, link.Number)
	}
	return out
}

func TestPageWindow(t *testing.T) {
	tests := []struct {
		name           string
		total, current int
		want           []any
	}{
		{name: "single page", total: 1, current: 1, want: []any{1}},
		{name: "seven pages uncompressed", total: 7, current: 4, want: []any{1, 2, 3, 4, 5, 6, 7}},
		{name: "middle of ten", total: 10, current: 5, want: []any{1, "...", 4, 5, 6, "...", 10}},
		{name: "start of ten", total: 10, current: 1, want: []any{1, 2, "...", 10}},
		{name: "near start", total: 10, current: 3, want: []any{1, 2, 3, 4, "...", 10}},
		{name: "end of ten", total: 10, current: 10, want: []any{1, "...", 9, 10}},
		{name: "gap of one page is an ellipsis", total: 8, current: 4, want: []any{1, "...", 3, 4, 5, "...", 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, numbers(PageWindow(tt.total, tt.current)))
		})
	}
}
