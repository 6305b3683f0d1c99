package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrInvalidGameTime is returned for a gameTime in none of GameTimeLayouts.
var ErrInvalidGameTime = errors.New("invalid fields: gameTime")

// GameTimeLayouts are the accepted gameTime formats, tried in order.
// "2006-01-02T15:04" is what a datetime-local form input sends.
var GameTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseGameTime parses value with the first matching layout, in UTC.
func ParseGameTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range GameTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidGameTime
}

// GameTime is a time decoded from any of GameTimeLayouts. It encodes as RFC3339.
type GameTime struct {
	time.Time
}

func (t *GameTime) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return ErrInvalidGameTime
	}
	parsed, err := ParseGameTime(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
