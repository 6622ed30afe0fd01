// Package lookup turns API list responses into id/label options and backs the
// searchable selection widgets of the wizard.
package lookup

import (
	"encoding/json"
	"strconv"
	"strings"
)

type Option struct {
	ID    int64
	Label string
}

// Items extracts the list of objects from a response body. Bare arrays and
// {content|data|items: [...]} envelopes are accepted.
func Items(body any) []map[string]any {
	if arr, ok := body.([]any); ok {
		return toMapSlice(arr)
	}
	if m, ok := body.(map[string]any); ok {
		for _, key := range []string{"content", "data", "items"} {
			if arr, ok := m[key].([]any); ok {
				return toMapSlice(arr)
			}
		}
	}
	return nil
}

// Options projects each item to an Option using labelField for the label.
// Items without a numeric id are skipped.
func Options(body any, labelField string) []Option {
	items := Items(body)
	out := make([]Option, 0, len(items))
	for _, item := range items {
		if opt, ok := toOption(item, labelField); ok {
			out = append(out, opt)
		}
	}
	return out
}

// Nested projects the sub-object found under the first present key of each
// item (e.g. "categoryDto" then "category") and de-duplicates the result.
func Nested(body any, labelField string, keys ...string) []Option {
	var out []Option
	for _, item := range Items(body) {
		for _, key := range keys {
			sub, ok := item[key].(map[string]any)
			if !ok {
				continue
			}
			if opt, ok := toOption(sub, labelField); ok {
				out = append(out, opt)
			}
			break
		}
	}
	return Dedupe(out)
}

// Dedupe keeps the first occurrence of every id, preserving order.
func Dedupe(opts []Option) []Option {
	seen := make(map[int64]struct{}, len(opts))
	out := make([]Option, 0, len(opts))
	for _, o := range opts {
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}
		out = append(out, o)
	}
	return out
}

// Filter returns the options whose label contains query, ignoring case.
// An empty query returns every option.
func Filter(opts []Option, query string) []Option {
	if query == "" {
		return opts
	}
	q := strings.ToLower(query)
	var filtered []Option
	for _, o := range opts {
		if strings.Contains(strings.ToLower(o.Label), q) {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

// ID reads a numeric identifier from a decoded JSON value.
func ID(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), n == float64(int64(n))
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func toOption(item map[string]any, labelField string) (Option, bool) {
	id, ok := ID(item["id"])
	if !ok {
		return Option{}, false
	}
	label, _ := item[labelField].(string)
	if label == "" {
		label = "#" + strconv.FormatInt(id, 10)
	}
	return Option{ID: id, Label: label}, true
}

func toMapSlice(arr []any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
