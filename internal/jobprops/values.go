package jobprops

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Wildcard is one name=value pair of a rule's wildcards.
type Wildcard struct {
	Name  string
	Value string
}

// Wildcards keeps the order in which the engine wrote the mapping.
type Wildcards []Wildcard

// String renders the wildcards as "k=v" pairs joined by dots, or "unique"
// when there are none.
func (w Wildcards) String() string {
	if len(w) == 0 {
		return "unique"
	}
	parts := make([]string, len(w))
	for i, wc := range w {
		parts[i] = wc.Name + "=" + wc.Value
	}
	return strings.Join(parts, ".")
}

func (w *Wildcards) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*w = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("wildcards: expected object, got %v", tok)
	}

	var out Wildcards
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("wildcards: unexpected key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("wildcards: value for %q: %w", name, err)
		}
		var value flexString
		if err := value.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("wildcards: value for %q: %w", name, err)
		}
		out = append(out, Wildcard{Name: name, Value: wildcardValue(raw, string(value))})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*w = out
	return nil
}

// wildcardValue spells booleans the way the workflow engine does in its own
// job names.
func wildcardValue(raw json.RawMessage, text string) string {
	switch string(bytes.TrimSpace(raw)) {
	case "true":
		return "True"
	case "false":
		return "False"
	}
	return text
}

// flexString accepts a JSON string or any other scalar, kept as its JSON text.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*s = ""
		return nil
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		return fmt.Errorf("expected scalar, got %s", data)
	}
	*s = flexString(data)
	return nil
}

// flexInt accepts a JSON integer, an integral float or a numeric string.
type flexInt int64

func (n *flexInt) UnmarshalJSON(data []byte) error {
	var v flexString
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	text := strings.TrimSpace(string(v))
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		*n = flexInt(i)
		return nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return fmt.Errorf("expected integer, got %s", data)
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return fmt.Errorf("integer out of range: %s", data)
	}
	*n = flexInt(f)
	return nil
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
