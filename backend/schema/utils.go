package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrTemplateNotFound   = errors.New("template not found")
	ErrAccessRuleNotFound = errors.New("access rule not found")
	ErrDbAccessFailed     = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetTemplate(templateId uuid.UUID, db *gorm.DB, loadQuestions, loadTags, loadUser bool) (Template, error) {
	var template Template

	var result *gorm.DB = db
	if loadQuestions {
		result = result.Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.position")
		})
	}
	if loadTags {
		result = result.Preload("Tags")
	}
	if loadUser {
		result = result.Preload("User")
	}
	result = result.First(&template, "id = ?", templateId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return template, ErrTemplateNotFound
		}
		slog.Error("sql error in get template", "template_id", templateId, "error", result.Error)
		return template, ErrDbAccessFailed
	}

	return template, nil
}

func GetAccessRules(templateId uuid.UUID, db *gorm.DB) ([]AccessRule, error) {
	var rules []AccessRule
	result := db.Find(&rules, "template_id = ?", templateId)
	if result.Error != nil {
		slog.Error("sql error in get access rules", "template_id", templateId, "error", result.Error)
		return nil, ErrDbAccessFailed
	}
	return rules, nil
}

func GetAccessRule(templateId, userId uuid.UUID, db *gorm.DB) (AccessRule, error) {
	var rule AccessRule
	result := db.First(&rule, "template_id = ? and user_id = ?", templateId, userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return rule, ErrAccessRuleNotFound
		}
		slog.Error("sql error in get access rule", "template_id", templateId, "user_id", userId, "error", result.Error)
		return rule, ErrDbAccessFailed
	}

	return rule, nil
}
