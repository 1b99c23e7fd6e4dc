package schools

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Contact type discriminants used by the source.
const (
	ContactTypePhone = 1
	ContactTypeEmail = 3
)

// Minimum number of digits for an untyped contact to count as a phone.
const minPhoneDigits = 5

// contactValueKeys are read in order when an entry has no "value" key.
var contactValueKeys = []string{"val", "phone", "email"}

// NormalizedContacts holds the four derived contacts columns.
type NormalizedContacts struct {
	All    string // ";"-joined, original order
	Phones string // "|"-joined
	Emails string // ";"-joined
	JSON   string // compact JSON of the classified items
}

// NormalizeContacts classifies a raw contacts value into phone, email and
// unclassified buckets. It never fails.
func NormalizeContacts(raw any) NormalizedContacts {
	switch v := raw.(type) {
	case nil:
		return NormalizedContacts{}
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
			if parsed, err := DecodeJSON([]byte(trimmed)); err == nil {
				return normalizeStructured(parsed)
			}
		}

		return normalizePlain(v)
	case map[string]any, []any:
		return normalizeStructured(v)
	default:
		return normalizePlain(Stringify(v))
	}
}

// normalizePlain is the legacy fallback: every part of a plain string lands in
// the email bucket whatever it looks like.
func normalizePlain(s string) NormalizedContacts {
	var parts []string

	for _, p := range strings.Split(s, ";") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	joined := strings.Join(parts, ";")

	return NormalizedContacts{
		All:    joined,
		Emails: joined,
		JSON:   s,
	}
}

func normalizeStructured(v any) NormalizedContacts {
	var items []any

	switch t := v.(type) {
	case map[string]any:
		items = []any{t}
	case []any:
		items = t
	default:
		return normalizePlain(Stringify(v))
	}

	var (
		all        []string
		phones     []string
		emails     []string
		classified = make([]any, 0, len(items))
	)

	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			if s := strings.TrimSpace(Stringify(item)); s != "" {
				all = append(all, s)
				classified = append(classified, item)
			}

			continue
		}

		raw, found := contactValue(entry)
		if !found {
			continue
		}

		value := strings.TrimSpace(Stringify(raw))
		all = append(all, value)
		classified = append(classified, entry)

		switch t, ok := contactType(entry); {
		case ok && t == ContactTypePhone:
			phones = append(phones, value)
		case ok && t == ContactTypeEmail:
			emails = append(emails, value)
		case looksLikeEmail(value):
			emails = append(emails, value)
		case countDigits(value) >= minPhoneDigits:
			phones = append(phones, value)
		}
	}

	return NormalizedContacts{
		All:    strings.Join(all, ";"),
		Phones: strings.Join(phones, "|"),
		Emails: strings.Join(emails, ";"),
		JSON:   CompactJSON(classified),
	}
}

func contactValue(entry map[string]any) (any, bool) {
	if v, ok := entry["value"]; ok && v != nil {
		return v, true
	}

	for _, k := range contactValueKeys {
		if v, ok := entry[k]; ok {
			if v == nil {
				return nil, false
			}

			return v, true
		}
	}

	return nil, false
}

// contactType reads typeId, else type, as an integer.
func contactType(entry map[string]any) (int, bool) {
	raw, ok := entry["typeId"]
	if !ok {
		raw, ok = entry["type"]
	}

	if !ok || raw == nil {
		return 0, false
	}

	switch t := raw.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}

		if f, err := t.Float64(); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return int(f), true
		}
	case float64:
		return int(t), true
	case int:
		return t, true
	case bool:
		if t {
			return 1, true
		}

		return 0, true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i, true
		}
	}

	return 0, false
}

func looksLikeEmail(s string) bool {
	return strings.Contains(s, "@") && strings.Contains(s, ".")
}

func countDigits(s string) int {
	n := 0

	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}

	return n
}
