package listview

// Page is one slice of a derived view.
type Page[T any] struct {
	Items      []T
	TotalPages int
	StartIndex int
	EndIndex   int
}

// PageLink is one entry of a compressed page window. Ellipsis entries carry
// no page number.
type PageLink struct {
	Number   int
	Ellipsis bool
}

// uncompressedWindow is the largest page count shown without ellipses.
const uncompressedWindow = 7

// TotalPages returns max(1, ceil(count/perPage)).
func TotalPages(count, perPage int) int {
	if perPage < 1 || count <= 0 {
		return 1
	}
	return (count + perPage - 1) / perPage
}

// ClampPage forces current into [1, total].
func ClampPage(current, total int) int {
	if total < 1 {
		total = 1
	}
	if current < 1 {
		return 1
	}
	if current > total {
		return total
	}
	return current
}

// Paginate slices derived according to spec. Out-of-range pages are not
// corrected here; callers clamp first.
func Paginate[T any](derived []T, spec PageSpec) Page[T] {
	perPage := spec.ItemsPerPage
	if perPage < 1 {
		perPage = 1
	}
	total := TotalPages(len(derived), perPage)

	start := (spec.CurrentPage - 1) * perPage
	start = min(max(start, 0), len(derived))
	end := min(start+perPage, len(derived))

	return Page[T]{
		Items:      derived[start:end:end],
		TotalPages: total,
		StartIndex: start,
		EndIndex:   end,
	}
}

// PageWindow lists the page numbers to display: the first and last page and
// every page within one of current, with every run of hidden pages collapsed
// into one ellipsis. Up to seven pages are all shown.
func PageWindow(totalPages, current int) []PageLink {
	if totalPages < 1 {
		totalPages = 1
	}
	links := make([]PageLink, 0, min(totalPages, uncompressedWindow))
	if totalPages <= uncompressedWindow {
		for page := 1; page <= totalPages; page++ {
			links = append(links, PageLink{Number: page})
		}
		return links
	}

	previous := 0
	for page := 1; page <= totalPages; page++ {
		if page != 1 && page != totalPages && (page < current-1 || page > current+1) {
			continue
		}
		if previous != 0 && page-previous > 1 {
			links = append(links, PageLink{Ellipsis: true})
		}
		links = append(links, PageLink{Number: page})
		previous = page
	}
	return links
}
