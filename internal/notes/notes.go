package notes

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for missing rows and for rows owned by another user.
var ErrNotFound = errors.New("not found")

type Note struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	CategoryID *string   `json:"categoryId,omitempty"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Summary    string    `json:"summary,omitempty"`
	AudioURL   string    `json:"audioUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Flashcard struct {
	ID            string    `json:"id"`
	NoteID        string    `json:"noteId"`
	UserID        string    `json:"userId"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer"`
	QuestionAudio *string   `json:"questionAudio,omitempty"`
	AnswerAudio   *string   `json:"answerAudio,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Store persists notes, categories and flashcards. Every method is scoped
// to a user id.
type Store interface {
	ListNotes(ctx context.Context, userID string) ([]*Note, error)
	GetNote(ctx context.Context, userID, id string) (*Note, error)
	CreateNote(ctx context.Context, note *Note) error
	UpdateNote(ctx context.Context, note *Note) error
	DeleteNote(ctx context.Context, userID, id string) error

	ListCategories(ctx context.Context, userID string) ([]*Category, error)
	GetCategory(ctx context.Context, userID, id string) (*Category, error)
	CreateCategory(ctx context.Context, category *Category) error

	ListFlashcards(ctx context.Context, userID, noteID string) ([]*Flashcard, error)
	GetFlashcard(ctx context.Context, userID, id string) (*Flashcard, error)
	// ReplaceFlashcards swaps the note's flashcards for cards atomically.
	ReplaceFlashcards(ctx context.Context, userID, noteID string, cards []*Flashcard) error
	// UpdateFlashcardAudio stores the non-nil halves and keeps the others.
	UpdateFlashcardAudio(ctx context.Context, userID, id string, questionAudio, answerAudio *string) error
}
