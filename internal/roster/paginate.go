// ABOUTME: Roster pagination with clamped page numbers and navigation flags
// ABOUTME: Slices an ordered roster into pages and builds navigation descriptors

package roster

// Page is one slice of a paginated list plus navigation state
type Page[T any] struct {
	Items      []T
	Number     int
	TotalPages int
	HasPrev    bool
	HasNext    bool
}

// Paginate slices items into pages of pageSize and returns the requested
// page. pageSize <= 0 means "single page, show all". A requested page
// outside [1, TotalPages] clamps to the nearest valid page rather than
// failing. An empty list yields one empty page; callers short-circuit to
// an "empty" message upstream instead of rendering it.
func Paginate[T any](items []T, pageSize, page int) Page[T] {
	if pageSize <= 0 {
		return Page[T]{Items: items, Number: 1, TotalPages: 1}
	}

	total := (len(items) + pageSize - 1) / pageSize
	if total < 1 {
		total = 1
	}

	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}

	return Page[T]{
		Items:      items[start:end],
		Number:     page,
		TotalPages: total,
		HasPrev:    page > 1,
		HasNext:    page < total,
	}
}
