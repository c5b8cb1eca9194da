package auth

import (
	"errors"
	"fmt"
	"net/http"

	"formhub/backend/schema"
	"formhub/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func AdminOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin {
				http.Error(w, fmt.Sprintf("user %v is not an admin", user.Id), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

type templatePermission int // Private so that no other permissions can be defined

const (
	NoPermission    templatePermission = 0
	ViewPermission  templatePermission = 1
	OwnerPermission templatePermission = 2
)

func templatePermissionToString(perm templatePermission) string {
	switch perm {
	case NoPermission:
		return "None"
	case ViewPermission:
		return "View"
	case OwnerPermission:
		return "Owner"
	default:
		return "invalid permission"
	}
}

// GetTemplatePermissions resolves what a viewer may do with a template. A nil
// viewer is an anonymous request. Owners and admins always get
// OwnerPermission. A template with no access rules is visible to everyone,
// anonymous included. Once any rule exists the template is restricted and
// only users with a can_access rule may view it.
func GetTemplatePermissions(templateId uuid.UUID, viewer *schema.User, db *gorm.DB) (templatePermission, error) {
	template, err := schema.GetTemplate(templateId, db, false, false, false)
	if err != nil {
		return NoPermission, err
	}

	if viewer != nil && (viewer.IsAdmin || template.UserId == viewer.Id) {
		return OwnerPermission, nil
	}

	rules, err := schema.GetAccessRules(templateId, db)
	if err != nil {
		return NoPermission, err
	}

	if len(rules) == 0 {
		return ViewPermission, nil
	}

	if viewer == nil {
		return NoPermission, nil
	}

	for _, rule := range rules {
		if rule.UserId == viewer.Id && rule.CanAccess {
			return ViewPermission, nil
		}
	}

	return NoPermission, nil
}

func templatePermissionOnly(db *gorm.DB, minPermission templatePermission, allowAnonymous bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			templateId, err := utils.URLParamUUID(r, "template_id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			viewer := ViewerFromContext(r)
			if viewer == nil && !allowAnonymous {
				http.Error(w, "login required to access endpoint", http.StatusUnauthorized)
				return
			}

			permission, err := GetTemplatePermissions(templateId, viewer, db)
			if err != nil {
				if errors.Is(err, schema.ErrTemplateNotFound) {
					http.Error(w, err.Error(), http.StatusNotFound)
					return
				}
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if permission >= minPermission {
				next.ServeHTTP(w, r)
				return
			}

			required, actual := templatePermissionToString(minPermission), templatePermissionToString(permission)
			http.Error(w, fmt.Sprintf("viewer does not have required permission for template %v (required=%v, actual=%v)", templateId, required, actual), http.StatusForbidden)
		}
		return http.HandlerFunc(hfn)
	}
}

// TemplateViewOnly guards read endpoints. Anonymous requests are allowed
// through and resolved against the template's access rules.
func TemplateViewOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return templatePermissionOnly(db, ViewPermission, true)
}

// TemplateOwnerOnly guards mutating endpoints. Only the template's owner or
// an admin may proceed, regardless of access rules.
func TemplateOwnerOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return templatePermissionOnly(db, OwnerPermission, false)
}
