package question

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// listFields are the structured sub-fields stored as JSON-encoded text.
var listFields = []string{FieldChoices, FieldOptions, FieldTags, FieldMediaURLs}

// Normalize resolves field aliases and serializes structured sub-fields to
// their storable text encoding. Values that are already strings pass
// through untouched, so normalization is idempotent. It never rejects
// input; semantic validation belongs to the API layer.
func Normalize(raw map[string]any) map[string]any {
	record := Resolve(raw)
	for _, field := range listFields {
		value, ok := record[field]
		if !ok || value == nil {
			continue
		}
		if _, isString := value.(string); isString {
			continue
		}
		record[field] = SerializeList(value)
	}
	return record
}

// SerializeList encodes a structured value as JSON text. Encoding failures
// degrade to the empty-list encoding rather than raising; the normalizer
// never errors on odd input.
func SerializeList(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// DeserializeList decodes stored list text back into a string slice.
// Non-JSON, non-empty text is treated as a single element, tolerating
// records written before list fields were JSON-encoded.
func DeserializeList(s string) []string {
	if s == "" || s == "null" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return out
	}
	// Mixed-type arrays ([1,"a"]) still decode element-wise.
	var anyOut []any
	if err := json.Unmarshal([]byte(s), &anyOut); err == nil {
		out = make([]string, 0, len(anyOut))
		for _, item := range anyOut {
			out = append(out, stringify(item))
		}
		return out
	}
	return []string{s}
}

// RecordFromPayload builds a typed Record from a normalized map, applying
// the create-boundary defaults for any missing field. The id is left empty
// when absent; the service assigns one.
func RecordFromPayload(normalized map[string]any) Record {
	rec := Record{
		ID:              asString(normalized[FieldID]),
		Subject:         stringOr(normalized, FieldSubject, DefaultSubject),
		Title:           stringOr(normalized, FieldTitle, ""),
		QuestionText:    stringOr(normalized, FieldQuestionText, ""),
		CorrectAnswer:   stringOr(normalized, FieldCorrectAnswer, ""),
		Explanation:     optString(normalized, FieldExplanation),
		DifficultyLevel: stringOr(normalized, FieldDifficultyLevel, DefaultDifficulty),
		Choices:         listValue(normalized, FieldChoices),
		Options:         listValue(normalized, FieldOptions),
		Tags:            listValue(normalized, FieldTags),
		MediaURLs:       listValue(normalized, FieldMediaURLs),
		Source:          stringOr(normalized, FieldSource, DefaultSource),
		IsListening:     boolOr(normalized, FieldIsListening, false),
		Mode:            optString(normalized, FieldMode),
		Word:            optString(normalized, FieldWord),
		Active:          boolOr(normalized, FieldActive, true),
		IsDeleted:       boolOr(normalized, FieldIsDeleted, false),
	}
	return rec
}

// PatchFromPayload builds a partial update from a normalized map. Only
// keys present in the payload produce non-nil patch fields.
func PatchFromPayload(normalized map[string]any) Patch {
	p := Patch{}
	if v, ok := normalized[FieldSubject]; ok {
		p.Subject = ptr(asString(v))
	}
	if v, ok := normalized[FieldTitle]; ok {
		p.Title = ptr(asString(v))
	}
	if v, ok := normalized[FieldQuestionText]; ok {
		p.QuestionText = ptr(asString(v))
	}
	if v, ok := normalized[FieldCorrectAnswer]; ok {
		p.CorrectAnswer = ptr(asString(v))
	}
	if v, ok := normalized[FieldExplanation]; ok {
		p.Explanation = ptr(asString(v))
	}
	if v, ok := normalized[FieldDifficultyLevel]; ok {
		p.DifficultyLevel = ptr(asString(v))
	}
	if v, ok := normalized[FieldChoices]; ok {
		p.Choices = ptr(toList(v))
	}
	if v, ok := normalized[FieldOptions]; ok {
		p.Options = ptr(toList(v))
	}
	if v, ok := normalized[FieldTags]; ok {
		p.Tags = ptr(toList(v))
	}
	if v, ok := normalized[FieldMediaURLs]; ok {
		p.MediaURLs = ptr(toList(v))
	}
	if v, ok := normalized[FieldSource]; ok {
		p.Source = ptr(asString(v))
	}
	if v, ok := normalized[FieldIsListening]; ok {
		p.IsListening = ptr(asBool(v))
	}
	if v, ok := normalized[FieldMode]; ok {
		p.Mode = ptr(asString(v))
	}
	if v, ok := normalized[FieldWord]; ok {
		p.Word = ptr(asString(v))
	}
	if v, ok := normalized[FieldActive]; ok {
		p.Active = ptr(asBool(v))
	}
	return p
}

func ptr[T any](v T) *T { return &v }

func stringOr(m map[string]any, key, fallback string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	s := asString(v)
	if s == "" {
		return fallback
	}
	return s
}

func optString(m map[string]any, key string) *string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	s := asString(v)
	return &s
}

func boolOr(m map[string]any, key string, fallback bool) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	return asBool(v)
}

func listValue(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	return toList(v)
}

// toList accepts either the serialized text form or a raw structured value.
func toList(v any) []string {
	switch val := v.(type) {
	case string:
		return DeserializeList(val)
	case []string:
		return val
	default:
		return DeserializeList(SerializeList(v))
	}
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return stringify(v)
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// asBool accepts JSON booleans plus the 0/1 and "true"/"false" encodings
// that loose clients send.
func asBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "true", "yes":
			return true
		default:
			return false
		}
	default:
		return false
	}
}
