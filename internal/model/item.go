package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrEmptyText is returned when an item would be created without visible text.
var ErrEmptyText = errors.New("text cannot be empty")

// Item is the domain model for a todo entry.
type Item struct {
	ID        ID     `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// ID identifies an item. Servers hand out either numbers or strings, so the
// value is kept as text and written back in the shape it arrived in.
type ID string

// NewClientID returns a creation-time id (Unix milliseconds).
func NewClientID(now time.Time) ID {
	return ID(strconv.FormatInt(now.UnixMilli(), 10))
}

func (id ID) String() string { return string(id) }

// numeric reports whether id is a canonical base-10 integer.
func (id ID) numeric() bool {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil && strconv.FormatInt(n, 10) == string(id)
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// ValidateText trims s and rejects it when nothing is left.
func ValidateText(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyText
	}
	return s, nil
}
