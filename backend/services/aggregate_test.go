package services

import (
	"encoding/json"
	"testing"

	"formhub/backend/schema"

	"github.com/google/uuid"
)

func makeResponse(t *testing.T, answers map[string]string) schema.FormResponse {
	data, err := json.Marshal(answers)
	if err != nil {
		t.Fatal(err)
	}
	return schema.FormResponse{Id: uuid.New(), Data: string(data)}
}

func TestAggregateNumericMean(t *testing.T) {
	question := schema.Question{Id: uuid.New(), Type: schema.NumericQuestion, Prompt: "visits"}
	key := question.Id.String()

	responses := []schema.FormResponse{
		makeResponse(t, map[string]string{key: "3"}),
		makeResponse(t, map[string]string{key: "x"}),
		makeResponse(t, map[string]string{key: "5"}),
	}

	summaries := AggregateResponses([]schema.Question{question}, responses)
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}

	s := summaries[0]
	if s.ResponseCount != 3 {
		t.Fatalf("expected 3 answers, got %d", s.ResponseCount)
	}
	if s.Average != "4" {
		t.Fatalf("expected average 4, got %v", s.Average)
	}
	if s.MostCommon != NoValue {
		t.Fatalf("numeric questions have no most common answer, got %v", s.MostCommon)
	}
}

func TestAggregateNumericNoParsableAnswers(t *testing.T) {
	question := schema.Question{Id: uuid.New(), Type: schema.NumericQuestion, Prompt: "visits"}
	key := question.Id.String()

	responses := []schema.FormResponse{
		makeResponse(t, map[string]string{key: "abc"}),
		makeResponse(t, map[string]string{key: ""}),
	}

	summaries := AggregateResponses([]schema.Question{question}, responses)
	if summaries[0].Average != NoValue {
		t.Fatalf("expected %v, got %v", NoValue, summaries[0].Average)
	}
	if summaries[0].ResponseCount != 2 {
		t.Fatalf("unparsable answers still count as responses, got %d", summaries[0].ResponseCount)
	}
}

func TestAggregateCategoricalMostCommon(t *testing.T) {
	question := schema.Question{Id: uuid.New(), Type: schema.RadioQuestion, Prompt: "color"}
	key := question.Id.String()

	responses := []schema.FormResponse{
		makeResponse(t, map[string]string{key: "red"}),
		makeResponse(t, map[string]string{key: "blue"}),
		makeResponse(t, map[string]string{key: "red"}),
	}

	summaries := AggregateResponses([]schema.Question{question}, responses)

	s := summaries[0]
	if s.MostCommon != "red" {
		t.Fatalf("expected red, got %v", s.MostCommon)
	}
	if s.Average != NoValue {
		t.Fatalf("categorical questions have no average, got %v", s.Average)
	}
}

func TestAggregateCategoricalTieBreak(t *testing.T) {
	question := schema.Question{Id: uuid.New(), Type: schema.RadioQuestion, Prompt: "color"}
	key := question.Id.String()

	responses := []schema.FormResponse{
		makeResponse(t, map[string]string{key: "blue"}),
		makeResponse(t, map[string]string{key: "red"}),
		makeResponse(t, map[string]string{key: "red"}),
		makeResponse(t, map[string]string{key: "blue"}),
	}

	summaries := AggregateResponses([]schema.Question{question}, responses)
	if summaries[0].MostCommon != "blue" {
		t.Fatalf("ties should go to the first encountered answer, got %v", summaries[0].MostCommon)
	}
}

func TestAggregateSkipsMalformedRows(t *testing.T) {
	question := schema.Question{Id: uuid.New(), Type: schema.RadioQuestion, Prompt: "color"}
	key := question.Id.String()

	responses := []schema.FormResponse{
		makeResponse(t, map[string]string{key: "red"}),
		{Id: uuid.New(), Data: "{not json"},
	}

	summaries := AggregateResponses([]schema.Question{question}, responses)
	if summaries[0].ResponseCount != 1 || summaries[0].MostCommon != "red" {
		t.Fatalf("malformed rows should be skipped, got %v", summaries[0])
	}
}

func TestAggregateIgnoresUnknownQuestionIds(t *testing.T) {
	question := schema.Question{Id: uuid.New(), Type: schema.StringQuestion, Prompt: "name"}

	responses := []schema.FormResponse{
		makeResponse(t, map[string]string{
			question.Id.String(): "alice",
			uuid.NewString():     "stale answer",
			"not-a-uuid":         "junk",
		}),
	}

	summaries := AggregateResponses([]schema.Question{question}, responses)
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if summaries[0].ResponseCount != 1 || summaries[0].MostCommon != "alice" {
		t.Fatalf("unknown question ids should be ignored, got %v", summaries[0])
	}
}

func TestAggregateEmptyResponses(t *testing.T) {
	questions := []schema.Question{
		{Id: uuid.New(), Type: schema.NumericQuestion, Prompt: "visits"},
		{Id: uuid.New(), Type: schema.TextQuestion, Prompt: "feedback"},
	}

	summaries := AggregateResponses(questions, nil)
	if len(summaries) != 2 {
		t.Fatalf("every question should appear in the output, got %d", len(summaries))
	}
	for _, s := range summaries {
		if s.ResponseCount != 0 || s.Average != NoValue || s.MostCommon != NoValue {
			t.Fatalf("invalid empty summary %v", s)
		}
	}
}
