package question

// Canonical long-form field names.
const (
	FieldID              = "id"
	FieldSubject         = "subject"
	FieldTitle           = "title"
	FieldQuestionText    = "question_text"
	FieldCorrectAnswer   = "correct_answer"
	FieldExplanation     = "explanation"
	FieldDifficultyLevel = "difficulty_level"
	FieldChoices         = "choices"
	FieldOptions         = "options"
	FieldTags            = "tags"
	FieldMediaURLs       = "media_urls"
	FieldSource          = "source"
	FieldIsListening     = "is_listening"
	FieldMode            = "mode"
	FieldWord            = "word"
	FieldActive          = "active"
	FieldIsDeleted       = "is_deleted"
)

// aliases maps every recognized key to its canonical long form. Long forms
// map to themselves so resolution is idempotent.
var aliases = map[string]string{
	"q":   FieldQuestionText,
	"a":   FieldCorrectAnswer,
	"e":   FieldExplanation,
	"d":   FieldDifficultyLevel,
	"src": FieldSource,
	"tag": FieldTags,

	FieldID:              FieldID,
	FieldSubject:         FieldSubject,
	FieldTitle:           FieldTitle,
	FieldQuestionText:    FieldQuestionText,
	FieldCorrectAnswer:   FieldCorrectAnswer,
	FieldExplanation:     FieldExplanation,
	FieldDifficultyLevel: FieldDifficultyLevel,
	FieldChoices:         FieldChoices,
	FieldOptions:         FieldOptions,
	FieldTags:            FieldTags,
	FieldMediaURLs:       FieldMediaURLs,
	FieldSource:          FieldSource,
	FieldIsListening:     FieldIsListening,
	FieldMode:            FieldMode,
	FieldWord:            FieldWord,
	FieldActive:          FieldActive,
	FieldIsDeleted:       FieldIsDeleted,
}

// Resolve maps short-form keys to canonical long-form keys. Unknown keys
// pass through unchanged so callers may attach arbitrary metadata. When a
// payload carries both a short and a long form of the same field, the long
// form wins regardless of map iteration order.
func Resolve(raw map[string]any) map[string]any {
	if raw == nil {
		return nil
	}
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		canonical, known := aliases[key]
		if !known || canonical == key {
			out[key] = value
			continue
		}
		// Short form: yields to an explicitly supplied long form.
		if _, hasLong := raw[canonical]; hasLong {
			continue
		}
		out[canonical] = value
	}
	return out
}
