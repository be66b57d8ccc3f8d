package exam

import (
	"github.com/go-playground/validator/v10"

	"github.com/peerbot/peerbot/core"
)

var (
	gradeTag  = "grade"
	gradeText = "Grade shall be 1 .. 10"
)

func init() {
	_ = core.Validate.RegisterValidation(gradeTag, gradeValidation)
	core.RegisterCustomTranslation(core.Validate, core.Translator, gradeTag, gradeText)
}

// gradeValidation bounds a review grade to [1, 10] inclusive.
func gradeValidation(fl validator.FieldLevel) bool {
	g := fl.Field().Int()
	return g >= 1 && g <= 10
}

type (
	NewQuestion struct {
		Number  int    `json:"number" validate:"required,min=1"`
		Variant int    `json:"variant" validate:"required,min=1"`
		Text    string `json:"text" validate:"required"`
	}

	NewAnswer struct {
		Number int    `json:"number" validate:"required,min=1"`
		Text   string `json:"text" validate:"required"`
	}

	NewReview struct {
		AssignmentID int    `json:"review_id" validate:"required,min=1"`
		Grade        int    `json:"grade" validate:"grade"`
		Text         string `json:"text" validate:"required"`
	}
)

func (q *NewQuestion) Validate() error {
	q.Text = core.CleanString(q.Text)
	return core.Validate.Struct(q)
}

func (a *NewAnswer) Validate() error {
	a.Text = core.CleanString(a.Text)
	return core.Validate.Struct(a)
}

func (r *NewReview) Validate() error {
	r.Text = core.CleanString(r.Text)
	return core.Validate.Struct(r)
}
