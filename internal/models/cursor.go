package models

// PageCursor tracks the position of one paginated TOC traversal.
// It lives only for the duration of a single Strategy A run.
type PageCursor struct {
	CurrentPage int // page the listing currently shows, 1-based
	TotalPages  int // 0 when the listing does not reveal a total
	TotalItems  int // 0 when unknown
}

// Bounded reports whether the traversal knows its last page.
func (c PageCursor) Bounded() bool {
	return c.TotalPages > 0
}

// TotalPagesFor computes how many listing pages hold totalItems rows.
// Returns 0 when either value is unknown or nonsensical.
func TotalPagesFor(totalItems, itemsPerPage int) int {
	if totalItems <= 0 || itemsPerPage <= 0 {
		return 0
	}
	return (totalItems + itemsPerPage - 1) / itemsPerPage
}
