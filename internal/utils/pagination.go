package utils

import (
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationResponse represents pagination response metadata
type PaginationResponse struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Count   int  `json:"count"`
	HasMore bool `json:"has_more"`
}

// NormalizePagination applies the default and maximum page size and clamps negative offsets
func NormalizePagination(limit, offset int) (int, int) {
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ParsePaginationFromQuery parses limit and offset query values; invalid values fall back to defaults
func ParsePaginationFromQuery(limitStr, offsetStr string) (int, int) {
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		limit = DefaultPageSize
	}
	offset, err := strconv.Atoi(offsetStr)
	if err != nil {
		offset = 0
	}
	return NormalizePagination(limit, offset)
}

// CalculatePaginationInfo builds the metadata for a page of count items.
// A full page means more items may follow.
func CalculatePaginationInfo(limit, offset, count int) PaginationResponse {
	return PaginationResponse{
		Limit:   limit,
		Offset:  offset,
		Count:   count,
		HasMore: count == limit,
	}
}
