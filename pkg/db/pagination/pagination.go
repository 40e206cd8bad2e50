// Package pagination implements opaque cursor paging over snowflake-keyed
// tables. The cursor is the last row's ID, base64-wrapped so clients treat
// it as a token.
package pagination

import (
	"encoding/base64"
	"encoding/json"
)

type Pagination struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit,default=50" validate:"gte=1,lte=250"`
}

type Cursor struct {
	ID string `json:"id"`
}

type PageInfo struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

func EncodeCursor(c Cursor) string {
	b, _ := json.Marshal(c)
	return base64.StdEncoding.EncodeToString(b)
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}

// Trim cuts an over-fetched page (limit+1 rows) down to limit and reports
// whether another page exists.
func Trim[T any](rows []T, limit int, id func(T) string) ([]T, *PageInfo) {
	if len(rows) <= limit {
		return rows, &PageInfo{HasMore: false}
	}

	rows = rows[:limit]
	return rows, &PageInfo{
		HasMore:    true,
		NextCursor: EncodeCursor(Cursor{ID: id(rows[len(rows)-1])}),
	}
}
