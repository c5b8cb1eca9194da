package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"formhub/backend/auth"
	"formhub/backend/connectors"
	"formhub/backend/schema"
	"formhub/utils"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type IntegrationService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider

	jira       *connectors.JiraConnector
	salesforce *connectors.SalesforceConnector
	odoo       *connectors.OdooConnector
}

func (s *IntegrationService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Post("/ticket", s.CreateTicket)
		r.Post("/crm", s.ExportToCrm)

		r.Route("/{template_id}", func(r chi.Router) {
			r.Use(auth.TemplateOwnerOnly(s.db))

			r.Post("/erp-push", s.PushToErp)
		})
	})

	return r
}

type createTicketRequest struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Link        string `json:"link"`
}

func (s *IntegrationService) CreateTicket(w http.ResponseWriter, r *http.Request) {
	if s.jira == nil || !s.jira.Configured() {
		http.Error(w, "jira integration is not configured", http.StatusServiceUnavailable)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params createTicketRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Summary == "" {
		http.Error(w, "ticket summary cannot be empty", http.StatusUnprocessableEntity)
		return
	}

	description := params.Description
	if params.Link != "" {
		description = fmt.Sprintf("%v\n\nReported from: %v", description, params.Link)
	}
	description = fmt.Sprintf("%v\nReported by: %v (%v)", description, user.Username, user.Email)

	key, err := s.jira.CreateTicket(params.Summary, description, params.Priority)
	if err != nil {
		http.Error(w, fmt.Sprintf("error creating support ticket: %v", err), http.StatusBadGateway)
		return
	}

	slog.Info("created support ticket successfully", "ticket", key, "user_id", user.Id)

	utils.WriteJsonResponse(w, map[string]string{"ticket": key})
}

type crmExportRequest struct {
	Company   string `json:"company"`
	Phone     string `json:"phone"`
	Website   string `json:"website"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (s *IntegrationService) ExportToCrm(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(integrationExportMetric)
	defer timer.ObserveDuration()

	if s.salesforce == nil || !s.salesforce.Configured() {
		http.Error(w, "salesforce integration is not configured", http.StatusServiceUnavailable)
		return
	}

	var params crmExportRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Company == "" || params.LastName == "" {
		http.Error(w, "company and last_name are required for crm export", http.StatusUnprocessableEntity)
		return
	}

	accountId, err := s.salesforce.CreateAccount(params.Company, params.Phone, params.Website)
	if err != nil {
		http.Error(w, fmt.Sprintf("error exporting account to salesforce: %v", err), http.StatusBadGateway)
		return
	}

	contactId, err := s.salesforce.CreateContact(accountId, params.FirstName, params.LastName, params.Email)
	if err != nil {
		http.Error(w, fmt.Sprintf("error exporting contact to salesforce: %v", err), http.StatusBadGateway)
		return
	}

	slog.Info("exported to salesforce successfully", "account_id", accountId, "contact_id", contactId)

	utils.WriteJsonResponse(w, map[string]string{"account_id": accountId, "contact_id": contactId})
}

type erpPushRequest struct {
	Email string `json:"email"`
}

// PushToErp pushes the template's aggregated results to Odoo as a crm.lead.
func (s *IntegrationService) PushToErp(w http.ResponseWriter, r *http.Request) {
	if s.odoo == nil || !s.odoo.Configured() {
		http.Error(w, "odoo integration is not configured", http.StatusServiceUnavailable)
		return
	}

	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params erpPushRequest
	if !utils.ParseRequestBody(w, r, &params) {
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

	var responses []schema.FormResponse
	result := s.db.Where("template_id = ?", templateId).Find(&responses)
	if result.Error != nil {
		slog.Error("sql error loading form responses for erp push", "template_id", templateId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error loading responses: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	summaries := AggregateResponses(template.Questions, responses)

	var description strings.Builder
	fmt.Fprintf(&description, "Aggregated results for '%v' (%v responses)\n", template.Title, len(responses))
	for _, summary := range summaries {
		fmt.Fprintf(&description, "- %v: avg=%v, most common=%v (%v answers)\n",
			summary.Prompt, summary.Average, summary.MostCommon, summary.ResponseCount)
	}

	leadId, err := s.odoo.CreateLead(fmt.Sprintf("Form results: %v", template.Title), description.String(), params.Email)
	if err != nil {
		http.Error(w, fmt.Sprintf("error pushing results to odoo: %v", err), http.StatusBadGateway)
		return
	}

	slog.Info("pushed results to odoo successfully", "template_id", templateId, "lead_id", leadId)

	utils.WriteJsonResponse(w, map[string]int{"lead_id": leadId})
}
