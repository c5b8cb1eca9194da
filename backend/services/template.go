package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"formhub/backend/auth"
	"formhub/backend/schema"
	"formhub/backend/storage"
	"formhub/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type TemplateService struct {
	db       *gorm.DB
	storage  storage.Storage
	userAuth auth.IdentityProvider
}

func (s *TemplateService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.OptionalAuthMiddleware()...)

		r.Get("/list", s.List)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Post("/create", s.Create)
	})

	r.Route("/{template_id}", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.userAuth.OptionalAuthMiddleware()...)
			r.Use(auth.TemplateViewOnly(s.db))

			r.Get("/", s.Get)
			r.Get("/comments", s.ListComments)
			r.Get("/image", s.GetImage)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.userAuth.AuthMiddleware()...)
			r.Use(auth.TemplateViewOnly(s.db))

			r.Post("/like", s.Like)
			r.Delete("/like", s.Unlike)

			r.Post("/comment", s.AddComment)
			r.Delete("/comment/{comment_id}", s.DeleteComment)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.userAuth.AuthMiddleware()...)
			r.Use(auth.TemplateOwnerOnly(s.db))

			r.Post("/update", s.Update)
			r.Delete("/", s.Delete)

			r.Get("/access", s.GetAccessRules)
			r.Post("/access", s.SetAccessRule)
			r.Delete("/access/{user_id}", s.DeleteAccessRule)

			r.With(checkSufficientStorage(s.storage)).Post("/image", s.UploadImage)
		})
	})

	return r
}

type questionRequest struct {
	Type    string   `json:"type"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Visible *bool    `json:"visible"`
}

type createTemplateRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Topic       string            `json:"topic"`
	Tags        []string          `json:"tags"`
	Questions   []questionRequest `json:"questions"`
}

type createTemplateResponse struct {
	TemplateId uuid.UUID `json:"template_id"`
}

func buildQuestions(templateId uuid.UUID, reqs []questionRequest) ([]schema.Question, error) {
	questions := make([]schema.Question, 0, len(reqs))
	for i, q := range reqs {
		if !schema.ValidQuestionType(q.Type) {
			return nil, CodedError(fmt.Errorf("invalid question type '%v'", q.Type), http.StatusUnprocessableEntity)
		}
		if q.Prompt == "" {
			return nil, CodedError(errors.New("question prompt cannot be empty"), http.StatusUnprocessableEntity)
		}

		options := "[]"
		if len(q.Options) > 0 {
			optionsJson, err := json.Marshal(q.Options)
			if err != nil {
				return nil, CodedError(fmt.Errorf("error encoding question options: %w", err), http.StatusInternalServerError)
			}
			options = string(optionsJson)
		}

		visible := true
		if q.Visible != nil {
			visible = *q.Visible
		}

		questions = append(questions, schema.Question{
			Id:         uuid.New(),
			TemplateId: templateId,
			Type:       q.Type,
			Prompt:     q.Prompt,
			Options:    options,
			Position:   i,
			Visible:    visible,
		})
	}
	return questions, nil
}

func buildTags(templateId uuid.UUID, tags []string) []schema.TemplateTag {
	templateTags := make([]schema.TemplateTag, 0, len(tags))
	seen := map[string]struct{}{}
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		templateTags = append(templateTags, schema.TemplateTag{TemplateId: templateId, Tag: tag})
	}
	return templateTags
}

func (s *TemplateService) Create(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(templateCreateMetric)
	defer timer.ObserveDuration()

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params createTemplateRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Title == "" {
		http.Error(w, "template title cannot be empty", http.StatusUnprocessableEntity)
		return
	}

	templateId := uuid.New()

	questions, err := buildQuestions(templateId, params.Questions)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	template := schema.Template{
		Id:            templateId,
		Title:         params.Title,
		Description:   params.Description,
		Topic:         params.Topic,
		PublishedDate: time.Now().UTC(),
		UserId:        user.Id,
		Tags:          buildTags(templateId, params.Tags),
		Questions:     questions,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.Create(&template)
		if result.Error != nil {
			slog.Error("sql error creating new template entry", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating template: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("created template successfully", "template_id", templateId, "user_id", user.Id)

	utils.WriteJsonResponse(w, createTemplateResponse{TemplateId: templateId})
}

type QuestionInfo struct {
	Id       uuid.UUID `json:"id"`
	Type     string    `json:"type"`
	Prompt   string    `json:"prompt"`
	Options  []string  `json:"options"`
	Position int       `json:"position"`
	Visible  bool      `json:"visible"`
}

type TemplateInfo struct {
	Id            uuid.UUID      `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Topic         string         `json:"topic"`
	PublishedDate time.Time      `json:"published_date"`
	LikesCount    int64          `json:"likes_count"`
	CommentCount  int64          `json:"comment_count"`
	OwnerId       uuid.UUID      `json:"owner_id"`
	OwnerUsername string         `json:"owner_username"`
	Tags          []string       `json:"tags"`
	Questions     []QuestionInfo `json:"questions,omitempty"`
	HasImage      bool           `json:"has_image"`
}

func convertToQuestionInfo(q *schema.Question) QuestionInfo {
	options := make([]string, 0)
	if q.Options != "" {
		if err := json.Unmarshal([]byte(q.Options), &options); err != nil {
			slog.Error("error decoding question options", "question_id", q.Id, "error", err)
		}
	}
	return QuestionInfo{
		Id:       q.Id,
		Type:     q.Type,
		Prompt:   q.Prompt,
		Options:  options,
		Position: q.Position,
		Visible:  q.Visible,
	}
}

func convertToTemplateInfo(template *schema.Template, includeHidden bool) TemplateInfo {
	tags := make([]string, 0, len(template.Tags))
	for _, tag := range template.Tags {
		tags = append(tags, tag.Tag)
	}

	questions := make([]QuestionInfo, 0, len(template.Questions))
	for i := range template.Questions {
		if !template.Questions[i].Visible && !includeHidden {
			continue
		}
		questions = append(questions, convertToQuestionInfo(&template.Questions[i]))
	}

	ownerUsername := ""
	if template.User != nil {
		ownerUsername = template.User.Username
	}

	return TemplateInfo{
		Id:            template.Id,
		Title:         template.Title,
		Description:   template.Description,
		Topic:         template.Topic,
		PublishedDate: template.PublishedDate,
		LikesCount:    template.LikesCount,
		CommentCount:  template.CommentCount,
		OwnerId:       template.UserId,
		OwnerUsername: ownerUsername,
		Tags:          tags,
		Questions:     questions,
		HasImage:      template.ImagePath != "",
	}
}

func (s *TemplateService) Get(w http.ResponseWriter, r *http.Request) {
	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	template, err := schema.GetTemplate(templateId, s.db, true, true, true)
	if err != nil {
		if errors.Is(err, schema.ErrTemplateNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error getting template: %v", err), http.StatusInternalServerError)
		return
	}

	viewer := auth.ViewerFromContext(r)
	includeHidden := viewer != nil && (viewer.IsAdmin || viewer.Id == template.UserId)

	utils.WriteJsonResponse(w, convertToTemplateInfo(&template, includeHidden))
}

// canView applies the same resolution as auth.GetTemplatePermissions but on
// preloaded rules, so that listing does not issue a query per template.
func canView(template *schema.Template, viewer *schema.User) bool {
	if viewer != nil && (viewer.IsAdmin || viewer.Id == template.UserId) {
		return true
	}
	if len(template.AccessRules) == 0 {
		return true
	}
	if viewer == nil {
		return false
	}
	for _, rule := range template.AccessRules {
		if rule.UserId == viewer.Id && rule.CanAccess {
			return true
		}
	}
	return false
}

func (s *TemplateService) List(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(templateListMetric)
	defer timer.ObserveDuration()

	query := s.db.Preload("Tags").Preload("AccessRules").Preload("User").Order("published_date desc")

	if topic := r.URL.Query().Get("topic"); topic != "" {
		query = query.Where("topic = ?", topic)
	}
	if tag := r.URL.Query().Get("tag"); tag != "" {
		query = query.Joins("JOIN template_tags ON template_tags.template_id = templates.id").Where("template_tags.tag = ?", tag)
	}

	var templates []schema.Template
	result := query.Find(&templates)
	if result.Error != nil {
		slog.Error("sql error listing templates", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing templates: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	viewer := auth.ViewerFromContext(r)

	infos := make([]TemplateInfo, 0, len(templates))
	for i := range templates {
		if !canView(&templates[i], viewer) {
			continue
		}
		info := convertToTemplateInfo(&templates[i], false)
		info.Questions = nil
		infos = append(infos, info)
	}

	utils.WriteJsonResponse(w, infos)
}

type updateTemplateRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Topic       string            `json:"topic"`
	Tags        []string          `json:"tags"`
	Questions   []questionRequest `json:"questions"`
}

// Update replaces the template's metadata, tags, and full question set. Old
// questions are removed rather than edited in place, existing responses keep
// their answers keyed by the old question ids and those answers are skipped
// during aggregation.
func (s *TemplateService) Update(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(templateUpdateMetric)
	defer timer.ObserveDuration()

	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateTemplateRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Title == "" {
		http.Error(w, "template title cannot be empty", http.StatusUnprocessableEntity)
		return
	}

	questions, err := buildQuestions(templateId, params.Questions)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		template, err := schema.GetTemplate(templateId, txn, false, false, false)
		if err != nil {
			if errors.Is(err, schema.ErrTemplateNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		template.Title = params.Title
		template.Description = params.Description
		template.Topic = params.Topic

		if result := txn.Save(&template); result.Error != nil {
			slog.Error("sql error updating template", "template_id", templateId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if result := txn.Where("template_id = ?", templateId).Delete(&schema.Question{}); result.Error != nil {
			slog.Error("sql error deleting old template questions", "template_id", templateId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if result := txn.Where("template_id = ?", templateId).Delete(&schema.TemplateTag{}); result.Error != nil {
			slog.Error("sql error deleting old template tags", "template_id", templateId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if len(questions) > 0 {
			if result := txn.Create(&questions); result.Error != nil {
				slog.Error("sql error inserting new template questions", "template_id", templateId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}

		if tags := buildTags(templateId, params.Tags); len(tags) > 0 {
			if result := txn.Create(&tags); result.Error != nil {
				slog.Error("sql error inserting new template tags", "template_id", templateId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating template: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("updated template successfully", "template_id", templateId)

	utils.WriteSuccess(w)
}

func (s *TemplateService) Delete(w http.ResponseWriter, r *http.Request) {
	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkTemplateExists(txn, templateId); err != nil {
			return err
		}

		result := txn.Delete(&schema.Template{Id: templateId})
		if result.Error != nil {
			slog.Error("sql error deleting template", "template_id", templateId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting template %v: %v", templateId, err), GetResponseCode(err))
		return
	}

	if err := s.storage.Delete(storage.TemplatePath(templateId)); err != nil {
		slog.Error("error deleting template storage", "template_id", templateId, "error", err)
	}

	utils.WriteSuccess(w)
}

type AccessRuleInfo struct {
	UserId    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	CanAccess bool      `json:"can_access"`
}

func (s *TemplateService) GetAccessRules(w http.ResponseWriter, r *http.Request) {
	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var rules []schema.AccessRule
	result := s.db.Preload("User").Where("template_id = ?", templateId).Find(&rules)
	if result.Error != nil {
		slog.Error("sql error listing template access rules", "template_id", templateId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing access rules: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]AccessRuleInfo, 0, len(rules))
	for _, rule := range rules {
		username := ""
		if rule.User != nil {
			username = rule.User.Username
		}
		infos = append(infos, AccessRuleInfo{UserId: rule.UserId, Username: username, CanAccess: rule.CanAccess})
	}

	utils.WriteJsonResponse(w, infos)
}

type accessRuleRequest struct {
	UserId    uuid.UUID `json:"user_id"`
	CanAccess bool      `json:"can_access"`
}

// SetAccessRule upserts the rule for a single (template, user) pair. Any
// existing rule for the pair is removed and the new one inserted in the same
// transaction, so setting a rule twice always leaves exactly one row.
func (s *TemplateService) SetAccessRule(w http.ResponseWriter, r *http.Request) {
	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params accessRuleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		template, err := schema.GetTemplate(templateId, txn, false, false, false)
		if err != nil {
			if errors.Is(err, schema.ErrTemplateNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if params.UserId == template.UserId {
			return CodedError(errors.New("cannot set an access rule for the template owner"), http.StatusUnprocessableEntity)
		}

		if err := checkUserExists(txn, params.UserId); err != nil {
			return err
		}

		if result := txn.Where("template_id = ? AND user_id = ?", templateId, params.UserId).Delete(&schema.AccessRule{}); result.Error != nil {
			slog.Error("sql error deleting old access rule", "template_id", templateId, "user_id", params.UserId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusConflict)
		}

		rule := schema.AccessRule{TemplateId: templateId, UserId: params.UserId, CanAccess: params.CanAccess}
		if result := txn.Create(&rule); result.Error != nil {
			slog.Error("sql error inserting access rule", "template_id", templateId, "user_id", params.UserId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusConflict)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error setting access rule: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("set template access rule successfully", "template_id", templateId, "user_id", params.UserId, "can_access", params.CanAccess)

	utils.WriteSuccess(w)
}

// DeleteAccessRule removes the rule for a single (template, user) pair.
// Deleting the last rule makes the template public again.
func (s *TemplateService) DeleteAccessRule(w http.ResponseWriter, r *http.Request) {
	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := s.db.Where("template_id = ? AND user_id = ?", templateId, userId).Delete(&schema.AccessRule{})
	if result.Error != nil {
		slog.Error("sql error deleting access rule", "template_id", templateId, "user_id", userId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error deleting access rule: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, fmt.Sprintf("error deleting access rule: %v", schema.ErrAccessRuleNotFound), http.StatusNotFound)
		return
	}

	slog.Info("deleted template access rule successfully", "template_id", templateId, "user_id", userId)

	utils.WriteSuccess(w)
}

func (s *TemplateService) Like(w http.ResponseWriter, r *http.Request) {
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

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.Like
		result := txn.Limit(1).Find(&existing, "template_id = ? AND user_id = ?", templateId, user.Id)
		if result.Error != nil {
			slog.Error("sql error checking for existing like", "template_id", templateId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(errors.New("template is already liked by user"), http.StatusConflict)
		}

		if result := txn.Create(&schema.Like{TemplateId: templateId, UserId: user.Id}); result.Error != nil {
			slog.Error("sql error creating like", "template_id", templateId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Model(&schema.Template{}).Where("id = ?", templateId).
			UpdateColumn("likes_count", gorm.Expr("likes_count + ?", 1))
		if result.Error != nil {
			slog.Error("sql error incrementing likes count", "template_id", templateId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error liking template: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *TemplateService) Unlike(w http.ResponseWriter, r *http.Request) {
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

	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.Where("template_id = ? AND user_id = ?", templateId, user.Id).Delete(&schema.Like{})
		if result.Error != nil {
			slog.Error("sql error deleting like", "template_id", templateId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(errors.New("template is not liked by user"), http.StatusNotFound)
		}

		result = txn.Model(&schema.Template{}).Where("id = ? AND likes_count > 0", templateId).
			UpdateColumn("likes_count", gorm.Expr("likes_count - ?", 1))
		if result.Error != nil {
			slog.Error("sql error decrementing likes count", "template_id", templateId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error unliking template: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type addCommentRequest struct {
	Content string `json:"content"`
}

type CommentInfo struct {
	Id        uuid.UUID `json:"id"`
	UserId    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *TemplateService) AddComment(w http.ResponseWriter, r *http.Request) {
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

	var params addCommentRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Content == "" {
		http.Error(w, "comment content cannot be empty", http.StatusUnprocessableEntity)
		return
	}

	comment := schema.Comment{
		Id:         uuid.New(),
		TemplateId: templateId,
		UserId:     user.Id,
		Content:    params.Content,
		CreatedAt:  time.Now().UTC(),
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if result := txn.Create(&comment); result.Error != nil {
			slog.Error("sql error creating comment", "template_id", templateId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result := txn.Model(&schema.Template{}).Where("id = ?", templateId).
			UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1))
		if result.Error != nil {
			slog.Error("sql error incrementing comment count", "template_id", templateId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error adding comment: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, map[string]uuid.UUID{"comment_id": comment.Id})
}

func (s *TemplateService) DeleteComment(w http.ResponseWriter, r *http.Request) {
	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	commentId, err := utils.URLParamUUID(r, "comment_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var comment schema.Comment
		result := txn.Limit(1).Find(&comment, "id = ? AND template_id = ?", commentId, templateId)
		if result.Error != nil {
			slog.Error("sql error finding comment", "comment_id", commentId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(errors.New("comment not found"), http.StatusNotFound)
		}

		if comment.UserId != user.Id && !user.IsAdmin {
			return CodedError(errors.New("only the comment author or an admin can delete a comment"), http.StatusForbidden)
		}

		if result := txn.Delete(&schema.Comment{Id: commentId}); result.Error != nil {
			slog.Error("sql error deleting comment", "comment_id", commentId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Model(&schema.Template{}).Where("id = ? AND comment_count > 0", templateId).
			UpdateColumn("comment_count", gorm.Expr("comment_count - ?", 1))
		if result.Error != nil {
			slog.Error("sql error decrementing comment count", "template_id", templateId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting comment: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *TemplateService) ListComments(w http.ResponseWriter, r *http.Request) {
	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var comments []schema.Comment
	result := s.db.Preload("User").Where("template_id = ?", templateId).Order("created_at asc").Find(&comments)
	if result.Error != nil {
		slog.Error("sql error listing comments", "template_id", templateId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing comments: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]CommentInfo, 0, len(comments))
	for _, comment := range comments {
		username := ""
		if comment.User != nil {
			username = comment.User.Username
		}
		infos = append(infos, CommentInfo{
			Id:        comment.Id,
			UserId:    comment.UserId,
			Username:  username,
			Content:   comment.Content,
			CreatedAt: comment.CreatedAt,
		})
	}

	utils.WriteJsonResponse(w, infos)
}

func getMultipartBoundary(r *http.Request) (string, error) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return "", CodedError(fmt.Errorf("missing 'Content-Type' header"), http.StatusBadRequest)
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", CodedError(fmt.Errorf("error parsing media type in request: %w", err), http.StatusBadRequest)
	}
	if mediaType != "multipart/form-data" {
		return "", CodedError(fmt.Errorf("expected media type to be 'multipart/form-data'"), http.StatusBadRequest)
	}

	boundary, ok := params["boundary"]
	if !ok {
		return "", CodedError(fmt.Errorf("missing 'boundary' parameter in 'Content-Type' header"), http.StatusBadRequest)
	}

	return boundary, nil
}

func (s *TemplateService) UploadImage(w http.ResponseWriter, r *http.Request) {
	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	boundary, err := getMultipartBoundary(r)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	reader := multipart.NewReader(r.Body, boundary)

	var savedPath string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			http.Error(w, fmt.Sprintf("error parsing multipart request: %v", err), http.StatusBadRequest)
			return
		}
		defer part.Close()

		if part.FormName() == "image" {
			if part.FileName() == "" {
				http.Error(w, "invalid filename in image upload: filename cannot be empty", http.StatusUnprocessableEntity)
				return
			}

			imagePath := storage.TemplateImagePath(templateId, filepath.Base(part.FileName()))
			if err := s.storage.Write(imagePath, part); err != nil {
				slog.Error("error saving uploaded image", "template_id", templateId, "error", err)
				http.Error(w, "error saving uploaded image", http.StatusInternalServerError)
				return
			}
			savedPath = imagePath
			break
		}
	}

	if savedPath == "" {
		http.Error(w, "no 'image' part found in upload", http.StatusUnprocessableEntity)
		return
	}

	result := s.db.Model(&schema.Template{}).Where("id = ?", templateId).Update("image_path", savedPath)
	if result.Error != nil {
		slog.Error("sql error updating template image path", "template_id", templateId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error updating template image: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteSuccess(w)
}

func (s *TemplateService) GetImage(w http.ResponseWriter, r *http.Request) {
	templateId, err := utils.URLParamUUID(r, "template_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	template, err := schema.GetTemplate(templateId, s.db, false, false, false)
	if err != nil {
		if errors.Is(err, schema.ErrTemplateNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error getting template: %v", err), http.StatusInternalServerError)
		return
	}

	if template.ImagePath == "" {
		http.Error(w, "template has no image", http.StatusNotFound)
		return
	}

	// The image can be gone from disk while the record still points at it,
	// e.g. after a restore of the database without the share directory.
	exists, err := s.storage.Exists(template.ImagePath)
	if err != nil {
		http.Error(w, "error reading template image", http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, "template has no image", http.StatusNotFound)
		return
	}

	image, err := s.storage.Read(template.ImagePath)
	if err != nil {
		http.Error(w, "error reading template image", http.StatusInternalServerError)
		return
	}
	defer image.Close()

	if contentType := mime.TypeByExtension(filepath.Ext(template.ImagePath)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	if _, err := io.Copy(w, image); err != nil {
		slog.Error("error writing template image to response", "template_id", templateId, "error", err)
	}
}
