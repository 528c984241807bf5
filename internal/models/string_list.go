package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StringList decodes a category field whether the backend sends a single
// string or an array of strings.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*s = nil
		return nil
	case strings.HasPrefix(trimmed, "["):
		var values []string
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		*s = values
		return nil
	case strings.HasPrefix(trimmed, `"`):
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		value = strings.TrimSpace(value)
		if value == "" {
			*s = []string{}
			return nil
		}
		*s = []string{value}
		return nil
	default:
		return fmt.Errorf("cannot decode %s into StringList", trimmed)
	}
}

// MarshalJSON always writes an array.
func (s StringList) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}
