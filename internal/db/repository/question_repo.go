package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/learning-notebook/question-service/internal/question"
)

// DBTX is the subset of pgxpool.Pool the repository needs; tests supply
// their own implementation.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuestionRepository implements question.Gateway on a Postgres questions
// table. List sub-fields are stored as JSON text columns and decoded on
// read; timestamps are assigned by the database.
type QuestionRepository struct {
	db DBTX
}

var _ question.Gateway = (*QuestionRepository)(nil)

func NewQuestionRepository(db DBTX) *QuestionRepository {
	return &QuestionRepository{db: db}
}

const recordColumns = `id, subject, title, question_text, correct_answer, explanation,
	difficulty_level, choices, options, tags, media_urls, source,
	is_listening, mode, word, active, is_deleted, created_at, updated_at`

// Create inserts a new record. A duplicate id surfaces as ErrConflict.
func (r *QuestionRepository) Create(ctx context.Context, rec question.Record) (question.Record, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO questions (
			id, subject, title, question_text, correct_answer, explanation,
			difficulty_level, choices, options, tags, media_urls, source,
			is_listening, mode, word, active, is_deleted, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, now(), now())
		RETURNING `+recordColumns,
		rec.ID, rec.Subject, rec.Title, rec.QuestionText, rec.CorrectAnswer, rec.Explanation,
		rec.DifficultyLevel, encodeList(rec.Choices), encodeList(rec.Options), encodeList(rec.Tags),
		encodeList(rec.MediaURLs), rec.Source, rec.IsListening, rec.Mode, rec.Word,
		rec.Active, rec.IsDeleted,
	)

	created, err := scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return question.Record{}, question.ErrConflict
		}
		return question.Record{}, fmt.Errorf("create question: %w", err)
	}
	return created, nil
}

// Get fetches by id regardless of active/is_deleted state.
func (r *QuestionRepository) Get(ctx context.Context, id string) (question.Record, error) {
	row := r.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM questions WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return question.Record{}, question.ErrNotFound
		}
		return question.Record{}, fmt.Errorf("get question: %w", err)
	}
	return rec, nil
}

// List returns live records, most recent first; equal timestamps keep
// insertion order via the seq column.
func (r *QuestionRepository) List(ctx context.Context, filter question.Filter) ([]question.Record, error) {
	where, args := buildListWhere(filter)
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM questions %s ORDER BY created_at DESC, seq ASC LIMIT $%d OFFSET $%d`,
		recordColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var records []question.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return records, nil
}

// Update merges non-nil patch fields into a live record (COALESCE-style:
// omitted fields keep their stored values) and refreshes updated_at.
func (r *QuestionRepository) Update(ctx context.Context, id string, patch question.Patch) (question.Record, error) {
	set, args := buildUpdateSet(patch)
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE questions SET %s WHERE id = $%d AND active AND NOT is_deleted RETURNING %s`,
		set, len(args), recordColumns)

	rec, err := scanRecord(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return question.Record{}, question.ErrNotFound
		}
		return question.Record{}, fmt.Errorf("update question: %w", err)
	}
	return rec, nil
}

// SoftDelete marks a record deleted. Already-deleted and unknown ids are
// no-ops that still succeed; updated_at is only touched on the first
// delete.
func (r *QuestionRepository) SoftDelete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE questions SET is_deleted = TRUE, updated_at = now() WHERE id = $1 AND NOT is_deleted`, id)
	if err != nil {
		return fmt.Errorf("soft delete question: %w", err)
	}
	return nil
}

// buildListWhere assembles the filter clause; live-record restriction is
// unconditional.
func buildListWhere(filter question.Filter) (string, []any) {
	clauses := []string{"active", "NOT is_deleted"}
	var args []any
	if filter.Subject != "" {
		args = append(args, filter.Subject)
		clauses = append(clauses, fmt.Sprintf("subject = $%d", len(args)))
	}
	if filter.DifficultyLevel != "" {
		args = append(args, filter.DifficultyLevel)
		clauses = append(clauses, fmt.Sprintf("difficulty_level = $%d", len(args)))
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// buildUpdateSet turns non-nil patch fields into SET assignments. The
// updated_at refresh is always present, so an empty patch still bumps the
// timestamp.
func buildUpdateSet(patch question.Patch) (string, []any) {
	assignments := []string{"updated_at = now()"}
	var args []any

	assign := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Subject != nil {
		assign("subject", *patch.Subject)
	}
	if patch.Title != nil {
		assign("title", *patch.Title)
	}
	if patch.QuestionText != nil {
		assign("question_text", *patch.QuestionText)
	}
	if patch.CorrectAnswer != nil {
		assign("correct_answer", *patch.CorrectAnswer)
	}
	if patch.Explanation != nil {
		assign("explanation", *patch.Explanation)
	}
	if patch.DifficultyLevel != nil {
		assign("difficulty_level", *patch.DifficultyLevel)
	}
	if patch.Choices != nil {
		assign("choices", encodeList(*patch.Choices))
	}
	if patch.Options != nil {
		assign("options", encodeList(*patch.Options))
	}
	if patch.Tags != nil {
		assign("tags", encodeList(*patch.Tags))
	}
	if patch.MediaURLs != nil {
		assign("media_urls", encodeList(*patch.MediaURLs))
	}
	if patch.Source != nil {
		assign("source", *patch.Source)
	}
	if patch.IsListening != nil {
		assign("is_listening", *patch.IsListening)
	}
	if patch.Mode != nil {
		assign("mode", *patch.Mode)
	}
	if patch.Word != nil {
		assign("word", *patch.Word)
	}
	if patch.Active != nil {
		assign("active", *patch.Active)
	}

	return strings.Join(assignments, ", "), args
}

// encodeList serializes a list field for its text column; nil stays NULL.
func encodeList(values []string) *string {
	if values == nil {
		return nil
	}
	encoded := question.SerializeList(values)
	return &encoded
}

func scanRecord(row pgx.Row) (question.Record, error) {
	var rec question.Record
	var choices, options, tags, mediaURLs *string
	err := row.Scan(
		&rec.ID, &rec.Subject, &rec.Title, &rec.QuestionText, &rec.CorrectAnswer, &rec.Explanation,
		&rec.DifficultyLevel, &choices, &options, &tags, &mediaURLs, &rec.Source,
		&rec.IsListening, &rec.Mode, &rec.Word, &rec.Active, &rec.IsDeleted,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return question.Record{}, err
	}
	rec.Choices = decodeList(choices)
	rec.Options = decodeList(options)
	rec.Tags = decodeList(tags)
	rec.MediaURLs = decodeList(mediaURLs)
	return rec, nil
}

func decodeList(stored *string) []string {
	if stored == nil {
		return nil
	}
	return question.DeserializeList(*stored)
}
