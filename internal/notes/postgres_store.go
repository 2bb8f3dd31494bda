package notes

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) Store {
	return &PostgresStore{db: db}
}

const noteColumns = `id, user_id, category_id, title, content, summary, audio_url, created_at, updated_at`

func scanNote(row pgx.Row) (*Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.UserID, &n.CategoryID, &n.Title, &n.Content, &n.Summary, &n.AudioURL, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// invalidTextRepresentation is raised for ids that are not UUIDs.
const invalidTextRepresentation = "22P02"

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation {
		return ErrNotFound
	}
	return fmt.Errorf("failed to %s: %w", what, err)
}

func (s *PostgresStore) ListNotes(ctx context.Context, userID string) ([]*Note, error) {
	rows, err := s.db.Query(ctx, `SELECT `+noteColumns+` FROM notes WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var out []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetNote(ctx context.Context, userID, id string) (*Note, error) {
	n, err := scanNote(s.db.QueryRow(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, "get note")
	}
	return n, nil
}

func (s *PostgresStore) CreateNote(ctx context.Context, note *Note) error {
	query := `
		INSERT INTO notes (user_id, category_id, title, content, summary, audio_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(ctx, query,
		note.UserID, note.CategoryID, note.Title, note.Content, note.Summary, note.AudioURL,
	).Scan(&note.ID, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateNote(ctx context.Context, note *Note) error {
	query := `
		UPDATE notes
		SET category_id = $3, title = $4, content = $5, summary = $6, audio_url = $7, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`
	err := s.db.QueryRow(ctx, query,
		note.ID, note.UserID, note.CategoryID, note.Title, note.Content, note.Summary, note.AudioURL,
	).Scan(&note.UpdatedAt)
	if err != nil {
		return notFound(err, "update note")
	}
	return nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM notes WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return notFound(err, "delete note")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListCategories(ctx context.Context, userID string) ([]*Category, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, name, color, created_at, updated_at
		FROM categories WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var out []*Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetCategory(ctx context.Context, userID, id string) (*Category, error) {
	var c Category
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, name, color, created_at, updated_at
		FROM categories WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "get category")
	}
	return &c, nil
}

func (s *PostgresStore) CreateCategory(ctx context.Context, category *Category) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO categories (user_id, name, color)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		category.UserID, category.Name, category.Color,
	).Scan(&category.ID, &category.CreatedAt, &category.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

const flashcardColumns = `id, note_id, user_id, question, answer, question_audio, answer_audio, created_at`

func scanFlashcard(row pgx.Row) (*Flashcard, error) {
	var f Flashcard
	err := row.Scan(&f.ID, &f.NoteID, &f.UserID, &f.Question, &f.Answer, &f.QuestionAudio, &f.AnswerAudio, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *PostgresStore) ListFlashcards(ctx context.Context, userID, noteID string) ([]*Flashcard, error) {
	rows, err := s.db.Query(ctx, `SELECT `+flashcardColumns+` FROM flashcards WHERE note_id = $1 AND user_id = $2 ORDER BY created_at, id`, noteID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flashcards: %w", err)
	}
	defer rows.Close()

	var out []*Flashcard
	for rows.Next() {
		f, err := scanFlashcard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flashcard: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flashcards: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetFlashcard(ctx context.Context, userID, id string) (*Flashcard, error) {
	f, err := scanFlashcard(s.db.QueryRow(ctx, `SELECT `+flashcardColumns+` FROM flashcards WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, "get flashcard")
	}
	return f, nil
}

func (s *PostgresStore) ReplaceFlashcards(ctx context.Context, userID, noteID string, cards []*Flashcard) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM flashcards WHERE note_id = $1 AND user_id = $2`, noteID, userID); err != nil {
		return fmt.Errorf("failed to clear flashcards: %w", err)
	}
	for _, card := range cards {
		card.NoteID, card.UserID = noteID, userID
		err := tx.QueryRow(ctx, `
			INSERT INTO flashcards (note_id, user_id, question, answer)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at`,
			noteID, userID, card.Question, card.Answer,
		).Scan(&card.ID, &card.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert flashcard: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit flashcards: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateFlashcardAudio(ctx context.Context, userID, id string, questionAudio, answerAudio *string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE flashcards
		SET question_audio = COALESCE($3, question_audio),
		    answer_audio = COALESCE($4, answer_audio)
		WHERE id = $1 AND user_id = $2`,
		id, userID, questionAudio, answerAudio)
	if err != nil {
		return notFound(err, "update flashcard audio")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
