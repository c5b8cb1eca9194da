package services

import (
	"encoding/json"
	"log/slog"
	"strconv"

	"formhub/backend/schema"

	"github.com/google/uuid"
)

// NoValue is reported for aggregates that cannot be computed, for example the
// average of a text question or the most common answer when nobody answered.
const NoValue = "N/A"

type QuestionSummary struct {
	QuestionId uuid.UUID `json:"question_id"`
	Prompt     string    `json:"prompt"`
	Type       string    `json:"type"`

	ResponseCount int `json:"response_count"`

	// Average is the mean of the numeric answers rendered as a string, or
	// NoValue for non numeric questions and questions with no parsable answers.
	Average string `json:"average"`

	// MostCommon is the most frequent answer, ties broken by whichever answer
	// was encountered first. NoValue for numeric questions.
	MostCommon string `json:"most_common"`
}

func decodeAnswers(response *schema.FormResponse) map[string]string {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(response.Data), &raw); err != nil {
		slog.Error("skipping malformed response row", "response_id", response.Id, "error", err)
		return nil
	}

	answers := make(map[string]string, len(raw))
	for key, value := range raw {
		str, ok := value.(string)
		if !ok {
			continue
		}
		answers[key] = str
	}
	return answers
}

func summarizeNumeric(question *schema.Question, answers []string) QuestionSummary {
	var sum float64
	var count int
	for _, answer := range answers {
		value, err := strconv.ParseFloat(answer, 64)
		if err != nil {
			continue
		}
		sum += value
		count++
	}

	average := NoValue
	if count > 0 {
		average = strconv.FormatFloat(sum/float64(count), 'f', -1, 64)
	}

	return QuestionSummary{
		QuestionId:    question.Id,
		Prompt:        question.Prompt,
		Type:          question.Type,
		ResponseCount: len(answers),
		Average:       average,
		MostCommon:    NoValue,
	}
}

func summarizeCategorical(question *schema.Question, answers []string) QuestionSummary {
	counts := map[string]int{}
	order := make([]string, 0)
	for _, answer := range answers {
		if _, ok := counts[answer]; !ok {
			order = append(order, answer)
		}
		counts[answer]++
	}

	mostCommon := NoValue
	best := 0
	for _, answer := range order {
		if counts[answer] > best {
			best = counts[answer]
			mostCommon = answer
		}
	}

	return QuestionSummary{
		QuestionId:    question.Id,
		Prompt:        question.Prompt,
		Type:          question.Type,
		ResponseCount: len(answers),
		Average:       NoValue,
		MostCommon:    mostCommon,
	}
}

// AggregateResponses computes a per question summary over the given
// responses. Every question appears in the output even if nobody answered it.
// Answers keyed by unknown question ids, for instance answers to questions
// that were since replaced by a template update, are ignored.
func AggregateResponses(questions []schema.Question, responses []schema.FormResponse) []QuestionSummary {
	answersByQuestion := make(map[uuid.UUID][]string, len(questions))

	for i := range responses {
		answers := decodeAnswers(&responses[i])
		for key, value := range answers {
			questionId, err := uuid.Parse(key)
			if err != nil {
				continue
			}
			answersByQuestion[questionId] = append(answersByQuestion[questionId], value)
		}
	}

	summaries := make([]QuestionSummary, 0, len(questions))
	for i := range questions {
		question := &questions[i]
		answers := answersByQuestion[question.Id]

		if question.Type == schema.NumericQuestion {
			summaries = append(summaries, summarizeNumeric(question, answers))
		} else {
			summaries = append(summaries, summarizeCategorical(question, answers))
		}
	}

	return summaries
}
