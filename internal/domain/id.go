package domain

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ID identifies users and organizations. It serializes to JSON as a decimal string.
type ID = snowflake.ID

// ErrInvalidID is returned when an identifier cannot be parsed.
var ErrInvalidID = errors.New("invalid identifier")

// ParseID parses a decimal identifier. Zero and negative values are rejected.
func ParseID(raw string) (ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// IDsToInt64 converts identifiers for storage drivers that want plain integers.
func IDsToInt64(ids []ID) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Int64())
	}
	return out
}

// IDsFromInt64 is the inverse of IDsToInt64.
func IDsFromInt64(values []int64) []ID {
	out := make([]ID, 0, len(values))
	for _, v := range values {
		out = append(out, ID(v))
	}
	return out
}
