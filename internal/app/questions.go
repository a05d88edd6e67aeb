package app

import (
	"context"

	"github.com/rs/zerolog/log"
	"trivia-service/internal/domain"
)

// DefaultBatchSize bounds how many questions a session or room game loads.
const DefaultBatchSize = 10

// LoadBatch fetches a question batch and falls back to the built-in set when the
// source fails or comes back empty. It never returns an empty batch.
func LoadBatch(ctx context.Context, src QuestionSource, limit int) []domain.Question {
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	if src == nil {
		return FallbackQuestions()
	}
	questions, err := src.FetchQuestions(ctx, limit)
	if err != nil {
		log.Warn().Err(err).Msg("question source failed, using fallback questions")
		return FallbackQuestions()
	}
	if len(questions) == 0 {
		log.Info().Msg("question source empty, using fallback questions")
		return FallbackQuestions()
	}
	if len(questions) > limit {
		questions = questions[:limit]
	}
	return questions
}

// FallbackQuestions returns the built-in question set.
func FallbackQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            "1",
			Prompt:        "What is the capital city of Kenya?",
			Options:       [domain.OptionCount]string{"Nairobi", "Mombasa", "Kisumu", "Nakuru"},
			CorrectOption: 0,
			Category:      "Geography",
		},
		{
			ID:            "2",
			Prompt:        "Which mountain is the highest in Kenya?",
			Options:       [domain.OptionCount]string{"Mount Kenya", "Mount Kilimanjaro", "Mount Elgon", "Mount Longonot"},
			CorrectOption: 0,
			Category:      "Geography",
		},
		{
			ID:            "3",
			Prompt:        "What is the official language of Kenya?",
			Options:       [domain.OptionCount]string{"Swahili", "English", "Kikuyu", "Luo"},
			CorrectOption: 1,
			Category:      "Culture",
		},
		{
			ID:            "4",
			Prompt:        "Which lake in Kenya is known for flamingos?",
			Options:       [domain.OptionCount]string{"Lake Nakuru", "Lake Victoria", "Lake Naivasha", "Lake Bogoria"},
			CorrectOption: 0,
			Category:      "Geography",
		},
		{
			ID:            "5",
			Prompt:        "What year did Kenya gain independence?",
			Options:       [domain.OptionCount]string{"1960", "1963", "1965", "1970"},
			CorrectOption: 1,
			Category:      "History",
		},
	}
}
