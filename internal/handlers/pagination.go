package handlers

import (
	"strconv"

	"storefront/internal/apperr"
)

const maxPageLimit = 100

// parsePaginationParams checks page and limit before they reach the backend.
// Absent values stay zero and the backend applies its defaults.
func parsePaginationParams(pageStr, limitStr string) (page, limit int64, err error) {
	if page, err = parseBounded("page", pageStr, 0); err != nil {
		return 0, 0, err
	}
	if limit, err = parseBounded("limit", limitStr, maxPageLimit); err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

// parseBounded reads a positive integer no larger than upper; upper 0 means unbounded.
func parseBounded(name, raw string, upper int64) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 || (upper > 0 && n > upper) {
		if upper > 0 {
			return 0, apperr.Validation("%s must be between 1 and %d", name, upper)
		}
		return 0, apperr.Validation("%s must be a positive integer", name)
	}
	return n, nil
}
