package backend

import (
	"encoding/json"
	"fmt"
)

// EncodeRow converts a draft or model into a Row using its JSON tags.
func EncodeRow(v any) (Row, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}
	row := Row{}
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}
	return row, nil
}

// DecodeRow converts a Row into T using T's JSON tags.
func DecodeRow[T any](row Row) (*T, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	return &out, nil
}

// DecodeRows converts rows into a slice of T. An empty input yields an empty,
// non-nil slice.
func DecodeRows[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		v, err := DecodeRow[T](row)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// Strings returns the string values of column across rows, skipping nulls.
func Strings(rows []Row, column string) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if s, ok := row[column].(string); ok {
			out = append(out, s)
		}
	}
	return out
}
