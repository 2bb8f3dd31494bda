package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const ErrMsgFlashcardParse = "Failed to parse generated flashcards"

var ErrInvalidFlashcards = errors.New("invalid flashcards payload")

const SummarySystemPrompt = "You are an assistant specialized in study summaries. Write a clear, concise and well structured " +
	"summary of the provided content, highlighting the main points and important concepts."

func SummaryPrompt(content string) string {
	return "Please summarize the following study content concisely:\n\n" + content
}

func FlashcardPrompt(content string) string {
	return "Create study flashcards (questions and answers) based on the following content:\n\n" + content +
		"\n\nReturn only a valid JSON array in the format: [{\"question\": \"question\", \"answer\": \"answer\"}]. " +
		"Create between 5 and 10 relevant flashcards."
}

// StripCodeFence removes a surrounding Markdown code fence (```json ... ```)
// from model output.
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "[{") {
		// drop the info string, e.g. "json"
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseFlashcards turns raw model output into a validated flashcard list.
// An empty list, or any card missing its question or answer, is invalid.
func ParseFlashcards(raw string) ([]Flashcard, error) {
	text := StripCodeFence(raw)

	var cards []Flashcard
	if err := json.Unmarshal([]byte(text), &cards); err != nil {
		// models sometimes wrap the array in prose
		start, end := strings.IndexByte(text, '['), strings.LastIndexByte(text, ']')
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFlashcards, err)
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &cards); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFlashcards, err)
		}
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("%w: empty list", ErrInvalidFlashcards)
	}
	for i := range cards {
		cards[i].Question = strings.TrimSpace(cards[i].Question)
		cards[i].Answer = strings.TrimSpace(cards[i].Answer)
		if cards[i].Question == "" || cards[i].Answer == "" {
			return nil, fmt.Errorf("%w: card %d is incomplete", ErrInvalidFlashcards, i)
		}
	}
	return cards, nil
}

// FlashcardResult post-processes a successful generation: the raw content is
// parsed and replaced by its canonical JSON encoding.
func FlashcardResult(res Result) Result {
	if !res.Success {
		return res
	}
	cards, err := ParseFlashcards(res.Content)
	if err != nil {
		return Failed(res.Provider, ErrMsgFlashcardParse)
	}
	data, err := json.Marshal(cards)
	if err != nil {
		return Failed(res.Provider, ErrMsgFlashcardParse)
	}
	return Succeeded(res.Provider, res.Model, string(data))
}
