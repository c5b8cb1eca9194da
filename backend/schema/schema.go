package schema

import (
	"time"

	"github.com/google/uuid"
)

const (
	StringQuestion   = "string"
	TextQuestion     = "text"
	RadioQuestion    = "radio"
	CheckboxQuestion = "checkbox"
	NumericQuestion  = "numeric"
)

func ValidQuestionType(t string) bool {
	switch t {
	case StringQuestion, TextQuestion, RadioQuestion, CheckboxQuestion, NumericQuestion:
		return true
	default:
		return false
	}
}

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Username string `gorm:"unique;size:50;not null"`
	Email    string `gorm:"unique;size:254;not null"`
	Password []byte

	IsAdmin   bool `gorm:"not null;default:false"`
	IsBlocked bool `gorm:"not null;default:false"`

	Templates []Template `gorm:"constraint:OnDelete:CASCADE"`
}

type Template struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Title       string `gorm:"size:200;not null"`
	Description string
	Topic       string `gorm:"size:100"`

	ImagePath string

	PublishedDate time.Time

	LikesCount   int64 `gorm:"not null;default:0"`
	CommentCount int64 `gorm:"not null;default:0"`

	UserId uuid.UUID `gorm:"type:uuid;not null"`
	User   *User

	Tags        []TemplateTag `gorm:"constraint:OnDelete:CASCADE"`
	Questions   []Question    `gorm:"constraint:OnDelete:CASCADE"`
	AccessRules []AccessRule  `gorm:"constraint:OnDelete:CASCADE"`
}

type TemplateTag struct {
	TemplateId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Tag        string    `gorm:"size:100;primaryKey"`
}

type Question struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TemplateId uuid.UUID `gorm:"type:uuid;not null;index"`

	Type   string `gorm:"size:50;not null"`
	Prompt string `gorm:"not null"`

	// JSON encoded list of choices, empty for non-choice question types.
	Options string

	Position int  `gorm:"not null"`
	Visible  bool `gorm:"not null;default:true"`
}

type AccessRule struct {
	TemplateId uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId     uuid.UUID `gorm:"type:uuid;primaryKey"`

	CanAccess bool `gorm:"not null"`

	User *User `gorm:"constraint:OnDelete:CASCADE"`
}

type FormResponse struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	TemplateId uuid.UUID `gorm:"type:uuid;not null;index"`
	UserId     uuid.UUID `gorm:"type:uuid;not null"`

	// JSON object mapping question id to the submitted answer.
	Data string

	SubmittedAt time.Time

	Template *Template `gorm:"constraint:OnDelete:CASCADE"`
}

type Like struct {
	TemplateId uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId     uuid.UUID `gorm:"type:uuid;primaryKey"`

	Template *Template `gorm:"constraint:OnDelete:CASCADE"`
	User     *User     `gorm:"constraint:OnDelete:CASCADE"`
}

type Comment struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	TemplateId uuid.UUID `gorm:"type:uuid;not null;index"`
	UserId     uuid.UUID `gorm:"type:uuid;not null"`

	Content   string `gorm:"not null"`
	CreatedAt time.Time

	User *User `gorm:"constraint:OnDelete:CASCADE"`
}

func AllModels() []interface{} {
	return []interface{}{
		&User{}, &Template{}, &TemplateTag{}, &Question{}, &AccessRule{},
		&FormResponse{}, &Like{}, &Comment{},
	}
}
