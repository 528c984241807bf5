package handlers

import (
	"errors"
	"testing"

	"storefront/internal/apperr"
)

func TestParsePaginationParams(t *testing.T) {
	page, limit, err := parsePaginationParams("", "")
	if err != nil || page != 0 || limit != 0 {
		t.Fatalf("empty params: page %d limit %d err %v", page, limit, err)
	}

	page, limit, err = parsePaginationParams("3", "25")
	if err != nil || page != 3 || limit != 25 {
		t.Fatalf("page %d limit %d err %v", page, limit, err)
	}

	for _, tc := range [][2]string{{"0", ""}, {"x", ""}, {"", "0"}, {"", "101"}, {"-1", "10"}} {
		if _, _, err := parsePaginationParams(tc[0], tc[1]); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("page %q limit %q: err = %v, want validation", tc[0], tc[1], err)
		}
	}
}
