package tests

import (
	"errors"
	"fmt"
	"testing"

	"formhub/backend/services"
)

func surveyTemplate() templateSpec {
	return templateSpec{
		Title: "visit survey",
		Questions: []questionSpec{
			{Type: "numeric", Prompt: "How many visits?"},
			{Type: "radio", Prompt: "Favorite color?", Options: []string{"red", "blue", "green"}},
		},
	}
}

func questionIds(t *testing.T, c client, templateId string) (string, string) {
	info, err := c.getTemplate(templateId)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %v", info.Questions)
	}
	return info.Questions[0].Id.String(), info.Questions[1].Id.String()
}

func TestSubmitAndListResponses(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	respondent, err := env.newUser("respondent")
	if err != nil {
		t.Fatal(err)
	}

	templateId, err := owner.createTemplate(surveyTemplate())
	if err != nil {
		t.Fatal(err)
	}

	numericId, radioId := questionIds(t, owner, templateId)

	_, err = respondent.submitResponse(templateId, map[string]string{numericId: "3", radioId: "red"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = respondent.submitResponse(templateId, map[string]string{"not-a-question": "3"})
	if err == nil {
		t.Fatal("answers for unknown questions should be rejected")
	}

	anon := env.newClient()
	_, err = anon.submitResponse(templateId, map[string]string{numericId: "1"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("anonymous users cannot submit responses")
	}

	responses, err := owner.listResponses(templateId)
	if err != nil {
		t.Fatal(err)
	}
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	if responses[0].UserId.String() != respondent.userId {
		t.Fatalf("invalid response owner %v", responses[0])
	}
	if responses[0].Answers[numericId] != "3" || responses[0].Answers[radioId] != "red" {
		t.Fatalf("invalid response answers %v", responses[0].Answers)
	}

	_, err = respondent.listResponses(templateId)
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("only the owner can list responses")
	}
}

func TestResponseSummary(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	templateId, err := owner.createTemplate(surveyTemplate())
	if err != nil {
		t.Fatal(err)
	}

	numericId, radioId := questionIds(t, owner, templateId)

	answers := []map[string]string{
		{numericId: "3", radioId: "red"},
		{numericId: "x", radioId: "blue"},
		{numericId: "5", radioId: "red"},
	}

	for i, a := range answers {
		respondent, err := env.newUser(fmt.Sprintf("respondent%d", i))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := respondent.submitResponse(templateId, a); err != nil {
			t.Fatal(err)
		}
	}

	summary, err := owner.responseSummary(templateId)
	if err != nil {
		t.Fatal(err)
	}

	if summary.ResponseCount != 3 || len(summary.Questions) != 2 {
		t.Fatalf("invalid summary %v", summary)
	}

	byId := map[string]services.QuestionSummary{}
	for _, q := range summary.Questions {
		byId[q.QuestionId.String()] = q
	}

	numeric := byId[numericId]
	if numeric.ResponseCount != 3 {
		t.Fatalf("invalid numeric response count %v", numeric)
	}
	// "x" is not parsable and is excluded from the mean
	if numeric.Average != "4" {
		t.Fatalf("expected average 4, got %v", numeric.Average)
	}
	if numeric.MostCommon != services.NoValue {
		t.Fatalf("numeric questions have no most common value, got %v", numeric.MostCommon)
	}

	radio := byId[radioId]
	if radio.MostCommon != "red" {
		t.Fatalf("expected most common red, got %v", radio.MostCommon)
	}
	if radio.Average != services.NoValue {
		t.Fatalf("categorical questions have no average, got %v", radio.Average)
	}
}

func TestResponseSummaryNoAnswers(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	templateId, err := owner.createTemplate(surveyTemplate())
	if err != nil {
		t.Fatal(err)
	}

	summary, err := owner.responseSummary(templateId)
	if err != nil {
		t.Fatal(err)
	}

	if summary.ResponseCount != 0 || len(summary.Questions) != 2 {
		t.Fatalf("invalid summary %v", summary)
	}
	for _, q := range summary.Questions {
		if q.Average != services.NoValue || q.MostCommon != services.NoValue {
			t.Fatalf("questions with no answers should report %v, got %v", services.NoValue, q)
		}
	}
}

func TestResponseSummaryNoQuestions(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	templateId, err := owner.createTemplate(templateSpec{Title: "empty"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = owner.responseSummary(templateId)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("summary of a template with no questions should 404: %v", err)
	}
}

func TestResponseSummaryAccessControl(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	respondent, err := env.newUser("respondent")
	if err != nil {
		t.Fatal(err)
	}

	templateId, err := owner.createTemplate(surveyTemplate())
	if err != nil {
		t.Fatal(err)
	}

	_, err = respondent.responseSummary(templateId)
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("only the owner can view the summary")
	}

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	_, err = admin.responseSummary(templateId)
	if err != nil {
		t.Fatalf("admins can view any summary: %v", err)
	}
}

func TestRestrictedTemplateSubmission(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	allowed, err := env.newUser("allowed")
	if err != nil {
		t.Fatal(err)
	}

	denied, err := env.newUser("denied")
	if err != nil {
		t.Fatal(err)
	}

	templateId, err := owner.createTemplate(surveyTemplate())
	if err != nil {
		t.Fatal(err)
	}

	numericId, _ := questionIds(t, owner, templateId)

	if err := owner.setAccessRule(templateId, allowed.userId, true); err != nil {
		t.Fatal(err)
	}

	_, err = allowed.submitResponse(templateId, map[string]string{numericId: "1"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = denied.submitResponse(templateId, map[string]string{numericId: "1"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("users without access cannot submit responses")
	}
}

func TestOldAnswersSkippedAfterQuestionReplacement(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	respondent, err := env.newUser("respondent")
	if err != nil {
		t.Fatal(err)
	}

	templateId, err := owner.createTemplate(surveyTemplate())
	if err != nil {
		t.Fatal(err)
	}

	numericId, radioId := questionIds(t, owner, templateId)

	_, err = respondent.submitResponse(templateId, map[string]string{numericId: "3", radioId: "red"})
	if err != nil {
		t.Fatal(err)
	}

	update := surveyTemplate()
	update.Title = "visit survey v2"
	if err := owner.updateTemplate(templateId, update); err != nil {
		t.Fatal(err)
	}

	summary, err := owner.responseSummary(templateId)
	if err != nil {
		t.Fatal(err)
	}

	// the old response still counts but its answers reference replaced questions
	if summary.ResponseCount != 1 {
		t.Fatalf("invalid response count %v", summary)
	}
	for _, q := range summary.Questions {
		if q.ResponseCount != 0 || q.Average != services.NoValue || q.MostCommon != services.NoValue {
			t.Fatalf("answers to replaced questions should be skipped, got %v", q)
		}
	}
}
