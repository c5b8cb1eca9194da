package services

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"formhub/backend/auth"
	"formhub/backend/connectors"
	"formhub/backend/schema"
	"formhub/backend/storage"
	"formhub/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type FormHub struct {
	user        UserService
	template    TemplateService
	response    ResponseService
	integration IntegrationService

	db   *gorm.DB
	stop chan bool
}

func NewFormHub(
	db *gorm.DB, storage storage.Storage, userAuth auth.IdentityProvider, integrations connectors.Config,
) FormHub {
	return FormHub{
		user: UserService{db: db, userAuth: userAuth},
		template: TemplateService{
			db:       db,
			storage:  storage,
			userAuth: userAuth,
		},
		response: ResponseService{db: db, userAuth: userAuth},
		integration: IntegrationService{
			db:         db,
			userAuth:   userAuth,
			jira:       connectors.NewJira(integrations.Jira),
			salesforce: connectors.NewSalesforce(integrations.Salesforce),
			odoo:       connectors.NewOdoo(integrations.Odoo),
		},
		db:   db,
		stop: make(chan bool, 1),
	}
}

func (h *FormHub) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/user", h.user.Routes())
	r.Mount("/template", h.template.Routes())
	r.Mount("/response", h.response.Routes())
	r.Mount("/integration", h.integration.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}

// counterSync repairs drift between the denormalized like/comment counters on
// templates and the underlying rows, for instance after a crashed transaction.
func (h *FormHub) counterSync() {
	result := h.db.Model(&schema.Template{}).Where("1 = 1").
		Update("likes_count", gorm.Expr("(SELECT COUNT(*) FROM likes WHERE likes.template_id = templates.id)"))
	if result.Error != nil {
		slog.Error("counter sync: sql error updating likes counts", "error", result.Error)
		return
	}

	result = h.db.Model(&schema.Template{}).Where("1 = 1").
		Update("comment_count", gorm.Expr("(SELECT COUNT(*) FROM comments WHERE comments.template_id = templates.id)"))
	if result.Error != nil {
		slog.Error("counter sync: sql error updating comment counts", "error", result.Error)
		return
	}
}

func (h *FormHub) CounterSync(interval time.Duration) {
	slog.Info("counter sync: starting")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.counterSync()
		case <-h.stop:
			slog.Info("counter sync: process stopped")
			return
		}
	}
}

func (h *FormHub) StopCounterSync() {
	close(h.stop)
}
