package utils

import "strconv" // String conversion

// Pagination defaults
const (
	DefaultPageSize = 20  // Default page size
	MaxPageSize     = 100 // Upper bound for page_size
)

// Page reads "page" and "page_size" query values, falling back to defaults on bad input
func Page(rawPage, rawSize string) (page, pageSize int) {
	page, pageSize = 1, DefaultPageSize
	if v, err := strconv.Atoi(rawPage); err == nil && v > 0 {
		page = v // Set page if valid
	}
	if v, err := strconv.Atoi(rawSize); err == nil && v > 0 && v <= MaxPageSize {
		pageSize = v // Set page size if valid
	}
	return page, pageSize
}

// TotalPages rounds total/pageSize up
func TotalPages(total int64, pageSize int) int {
	return (int(total) + pageSize - 1) / pageSize
}
