package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"formhub/backend/auth"
	"formhub/backend/schema"
	"formhub/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type ResponseService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *ResponseService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Route("/{template_id}", func(r chi.Router) {
			r.With(auth.TemplateViewOnly(s.db)).Post("/submit", s.Submit)

			r.Group(func(r chi.Router) {
				r.Use(auth.TemplateOwnerOnly(s.db))

				r.Get("/list", s.List)
				r.Get("/summary", s.Summary)
			})
		})
	})

	return r
}

type submitRequest struct {
	Answers map[string]string `json:"answers"`
}

type submitResponse struct {
	ResponseId uuid.UUID `json:"response_id"`
}

func (s *ResponseService) Submit(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(responseSubmitMetric)
	defer timer.ObserveDuration()

	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params submitRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	responseId := uuid.New()

	err = s.db.Transaction(func(txn *gorm.DB) error {
		template, err := schema.GetTemplate(templateId, txn, true, false, false)
		if err != nil {
			if errors.Is(err, schema.ErrTemplateNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		validIds := make(map[string]struct{}, len(template.Questions))
		for _, question := range template.Questions {
			validIds[question.Id.String()] = struct{}{}
		}

		for key := range params.Answers {
			if _, ok := validIds[key]; !ok {
				return CodedError(fmt.Errorf("answer references unknown question %v", key), http.StatusUnprocessableEntity)
			}
		}

		data, err := json.Marshal(params.Answers)
		if err != nil {
			return CodedError(fmt.Errorf("error encoding response answers: %w", err), http.StatusInternalServerError)
		}

		response := schema.FormResponse{
			Id:          responseId,
			TemplateId:  templateId,
			UserId:      user.Id,
			Data:        string(data),
			SubmittedAt: time.Now().UTC(),
		}

		if result := txn.Create(&response); result.Error != nil {
			slog.Error("sql error creating form response", "template_id", templateId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error submitting response: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("submitted response successfully", "template_id", templateId, "response_id", responseId, "user_id", user.Id)

	utils.WriteJsonResponse(w, submitResponse{ResponseId: responseId})
}

type ResponseInfo struct {
	Id          uuid.UUID         `json:"id"`
	UserId      uuid.UUID         `json:"user_id"`
	Answers     map[string]string `json:"answers"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

func (s *ResponseService) List(w http.ResponseWriter, r *http.Request) {
	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var responses []schema.FormResponse
	result := s.db.Where("template_id = ?", templateId).Order("submitted_at asc").Find(&responses)
	if result.Error != nil {
		slog.Error("sql error listing form responses", "template_id", templateId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing responses: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]ResponseInfo, 0, len(responses))
	for i := range responses {
		answers := decodeAnswers(&responses[i])
		if answers == nil {
			continue
		}
		infos = append(infos, ResponseInfo{
			Id:          responses[i].Id,
			UserId:      responses[i].UserId,
			Answers:     answers,
			SubmittedAt: responses[i].SubmittedAt,
		})
	}

	utils.WriteJsonResponse(w, infos)
}

type summaryResponse struct {
	TemplateId    uuid.UUID         `json:"template_id"`
	ResponseCount int               `json:"response_count"`
	Questions     []QuestionSummary `json:"questions"`
}

func (s *ResponseService) Summary(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(responseAggregateMetric)
	defer timer.ObserveDuration()

	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	template, err := schema.GetTemplate(templateId, s.db, true, false, false)
	if err != nil {
		if errors.Is(err, schema.ErrTemplateNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error getting template: %v", err), http.StatusInternalServerError)
		return
	}

	if len(template.Questions) == 0 {
		http.Error(w, fmt.Sprintf("template %v has no questions to summarize", templateId), http.StatusNotFound)
		return
	}

	var responses []schema.FormResponse
	result := s.db.Where("template_id = ?", templateId).Find(&responses)
	if result.Error != nil {
		slog.Error("sql error loading form responses for summary", "template_id", templateId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error loading responses: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	summaries := AggregateResponses(template.Questions, responses)

	utils.WriteJsonResponse(w, summaryResponse{
		TemplateId:    templateId,
		ResponseCount: len(responses),
		Questions:     summaries,
	})
}
