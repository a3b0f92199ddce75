package lookup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/diagkit/licensecheck/internal/license"
)

// DecodeIssue describes one upstream record or field that could not be read.
// The affected field is left unset; the record itself is kept.
type DecodeIssue struct {
	Key    string
	Field  string
	Reason string
}

func (i DecodeIssue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("%s: %s", i.Key, i.Reason)
	}
	return fmt.Sprintf("%s.%s: %s", i.Key, i.Field, i.Reason)
}

// DecodeResponse reads a license map. Only a body that is not a JSON object is
// an error; a record or field of an unexpected type decodes to zero values and
// is reported as a DecodeIssue. Whole-number floats and numeric strings are
// accepted for integer fields.
func DecodeResponse(data []byte) (license.RawResponse, []DecodeIssue, error) {
	var records map[string]json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, err
	}

	keys := make([]string, 0, len(records))
	for key := range records {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	raw := make(license.RawResponse, len(records))
	var issues []DecodeIssue
	for _, key := range keys {
		info, recordIssues := decodeRecord(key, records[key])
		raw[key] = info
		issues = append(issues, recordIssues...)
	}
	return raw, issues, nil
}

func decodeRecord(key string, data json.RawMessage) (license.Info, []DecodeIssue) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return license.Info{}, []DecodeIssue{{Key: key, Reason: "record is " + jsonKind(data) + ", want object"}}
	}

	var (
		info   license.Info
		issues []DecodeIssue
	)
	read := func(field string, decode func(json.RawMessage) error) {
		value, ok := fields[field]
		if !ok || jsonKind(value) == "null" {
			return
		}
		if err := decode(value); err != nil {
			issues = append(issues, DecodeIssue{Key: key, Field: field, Reason: err.Error()})
		}
	}

	read("name", stringInto(&info.Name))
	read("expiryDate", stringInto(&info.ExpiryDate))
	read("daysRemaining", intInto(&info.DaysRemaining))
	read("periodicity", stringInto(&info.Periodicity))
	read("term", stringInto(&info.Term))
	read("isTrial", boolInto(&info.IsTrial))
	read("seats", intInto(&info.Seats))
	read("autoRenew", boolInto(&info.AutoRenew))
	return info, issues
}

func stringInto(dst **string) func(json.RawMessage) error {
	return func(value json.RawMessage) error {
		decoded, err := decodeScalar(value)
		if err != nil {
			return err
		}
		switch typed := decoded.(type) {
		case string:
			*dst = &typed
		case json.Number:
			text := typed.String()
			*dst = &text
		default:
			return fmt.Errorf("want string, got %s", jsonKind(value))
		}
		return nil
	}
}

func intInto(dst **int) func(json.RawMessage) error {
	return func(value json.RawMessage) error {
		decoded, err := decodeScalar(value)
		if err != nil {
			return err
		}
		var text string
		switch typed := decoded.(type) {
		case json.Number:
			text = typed.String()
		case string:
			text = strings.TrimSpace(typed)
		default:
			return fmt.Errorf("want number, got %s", jsonKind(value))
		}

		if n, err := strconv.Atoi(text); err == nil {
			*dst = &n
			return nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
			return fmt.Errorf("want whole number, got %q", text)
		}
		n := int(f)
		*dst = &n
		return nil
	}
}

func boolInto(dst **bool) func(json.RawMessage) error {
	return func(value json.RawMessage) error {
		decoded, err := decodeScalar(value)
		if err != nil {
			return err
		}
		switch typed := decoded.(type) {
		case bool:
			*dst = &typed
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
			if err != nil {
				return fmt.Errorf("want boolean, got %q", typed)
			}
			*dst = &parsed
		default:
			return fmt.Errorf("want boolean, got %s", jsonKind(value))
		}
		return nil
	}
}

func decodeScalar(value json.RawMessage) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(value))
	decoder.UseNumber()
	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func jsonKind(value json.RawMessage) string {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return "empty"
	}
	switch trimmed[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

func logDecodeIssues(logger *log.Logger, source string, issues []DecodeIssue) {
	if logger == nil {
		return
	}
	for _, issue := range issues {
		logger.Warn("license record field ignored", "source", source, "key", issue.Key, "field", issue.Field, "reason", issue.Reason)
	}
}
