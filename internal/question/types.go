package question

import (
	"errors"
	"time"
)

// Difficulty constants for readability.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Defaults applied at the create boundary.
const (
	DefaultSubject    = "general"
	DefaultDifficulty = DifficultyMedium
	DefaultSource     = "learning-notebook"
)

// Sentinel errors surfaced by the gateway and service; the HTTP layer maps
// these to status codes.
var (
	ErrNotFound       = errors.New("question not found")
	ErrConflict       = errors.New("question id already exists")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Record is the canonical persisted question entity. List-shaped sub-fields
// (Choices, Options, Tags, MediaURLs) are JSON-encoded text in storage and
// decoded at the gateway boundary.
type Record struct {
	ID              string    `json:"id"`
	Subject         string    `json:"subject"`
	Title           string    `json:"title"`
	QuestionText    string    `json:"question_text"`
	CorrectAnswer   string    `json:"correct_answer"`
	Explanation     *string   `json:"explanation,omitempty"`
	DifficultyLevel string    `json:"difficulty_level"`
	Choices         []string  `json:"choices,omitempty"`
	Options         []string  `json:"options,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	MediaURLs       []string  `json:"media_urls,omitempty"`
	Source          string    `json:"source"`
	IsListening     bool      `json:"is_listening"`
	Mode            *string   `json:"mode,omitempty"`
	Word            *string   `json:"word,omitempty"`
	Active          bool      `json:"active"`
	IsDeleted       bool      `json:"is_deleted"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Patch carries a partial update; nil fields are left untouched in storage
// (COALESCE merge). ID, timestamps and the soft-delete flag are not
// patchable through the update path.
type Patch struct {
	Subject         *string
	Title           *string
	QuestionText    *string
	CorrectAnswer   *string
	Explanation     *string
	DifficultyLevel *string
	Choices         *[]string
	Options         *[]string
	Tags            *[]string
	MediaURLs       *[]string
	Source          *string
	IsListening     *bool
	Mode            *string
	Word            *string
	Active          *bool
}

// IsZero reports whether the patch carries no fields at all.
func (p Patch) IsZero() bool {
	return p.Subject == nil && p.Title == nil && p.QuestionText == nil &&
		p.CorrectAnswer == nil && p.Explanation == nil && p.DifficultyLevel == nil &&
		p.Choices == nil && p.Options == nil && p.Tags == nil && p.MediaURLs == nil &&
		p.Source == nil && p.IsListening == nil && p.Mode == nil && p.Word == nil &&
		p.Active == nil
}

// Filter narrows List results. Zero-valued fields are ignored.
type Filter struct {
	Subject         string
	DifficultyLevel string
	Limit           int
	Offset          int
}

// DeleteResult reports the outcome of a soft delete.
type DeleteResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// ImportError records a single failed record within a bulk import.
type ImportError struct {
	Identifier string `json:"identifier"`
	Message    string `json:"message"`
}

// ImportResult is the tally produced by a bulk import. One record's
// failure never aborts the batch.
type ImportResult struct {
	Total   int           `json:"total"`
	Success int           `json:"success"`
	Failed  int           `json:"failed"`
	Errors  []ImportError `json:"errors,omitempty"`
}
