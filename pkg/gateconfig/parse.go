package gateconfig

import (
	"errors"
	"strconv"
	"strings"
)

// Messages returned by the text field parsers. They are shown to users as is.
var (
	ErrListNotNumeric  = errors.New("List must contain numbers.")
	ErrListEmpty       = errors.New("You must supply at least one value")
	ErrScoreOutOfRange = errors.New("Value must be between 1 and 100")
	ErrValueNegative   = errors.New("Value must be 0 or larger")
	ErrValueNotNumeric = errors.New("Value must be a number")
)

// ParseIDList parses a comma-separated list of IDs, de-duplicated in
// first-seen order. Blank input yields an empty list unless requireOne is
// set.
func ParseIDList(s string, requireOne bool) ([]int, error) {
	s = strings.TrimSpace(s)
	var ids []int
	if s != "" {
		seen := make(map[int]struct{})
		for _, part := range strings.Split(s, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, ErrListNotNumeric
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	if requireOne && len(ids) == 0 {
		return nil, ErrListEmpty
	}
	return ids, nil
}

// ParseOptionalNonNegative parses an optional count. Blank input returns nil.
func ParseOptionalNonNegative(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, ErrValueNotNumeric
	}
	if v < 0 {
		return nil, ErrValueNegative
	}
	return &v, nil
}

// ParseScore parses an optional performance score. Blank input returns nil.
func ParseScore(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, ErrValueNotNumeric
	}
	if v < 1 || v > 100 {
		return nil, ErrScoreOutOfRange
	}
	return &v, nil
}

// FormatIDList renders ids as a comma-separated list.
func FormatIDList(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
