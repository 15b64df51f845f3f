package store

import (
	"encoding/json"
	"strings"
)

// Agent list and map columns are written as JSON. Rows written by the older
// dashboard stored rules newline-joined, topics comma-joined and context as
// "key: value" lines, so decoding accepts both shapes.

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func encodeContext(ctx map[string]string) (string, error) {
	if ctx == nil {
		ctx = map[string]string{}
	}
	b, err := json.Marshal(ctx)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeRules reads a rules column. Legacy rules were newline-joined and
// may themselves contain commas.
func decodeRules(raw string) []string {
	return decodeList(raw, "\n")
}

// decodeTopics reads a prohibited_topics column. Legacy topics were
// comma-joined, and some rows were edited into one topic per line.
func decodeTopics(raw string) []string {
	return decodeList(raw, "\n", ",")
}

// decodeList parses a JSON array, or else splits legacy text on the first
// of seps that occurs in raw.
func decodeList(raw string, seps ...string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}

	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		if out == nil {
			out = []string{}
		}
		return out
	}

	sep := ""
	for _, s := range seps {
		if strings.Contains(raw, s) {
			sep = s
			break
		}
	}
	if sep == "" {
		return []string{raw}
	}

	out = []string{}
	for _, part := range strings.Split(raw, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func decodeContext(raw string) map[string]string {
	out := map[string]string{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out
	}

	var generic map[string]any
	if err := json.Unmarshal([]byte(raw), &generic); err == nil {
		for k, v := range generic {
			switch tv := v.(type) {
			case string:
				out[k] = tv
			case nil:
				out[k] = ""
			default:
				b, _ := json.Marshal(tv)
				out[k] = string(b)
			}
		}
		return out
	}

	for _, line := range strings.Split(raw, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}
