package validators

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Subject  string `json:"subject" validate:"required,min=3"`
	Priority string `json:"priority" validate:"omitempty,oneof=low normal"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func TestErrorsUseWireNames(t *testing.T) {
	err := GetValidator().Struct(sample{Priority: "urgent", Page: -1, Email: "nope"})

	errs := Errors(err)
	assert.Equal(t, "subject is required!", errs["subject"])
	assert.Equal(t, "Invalid priority! Allowed: low, normal", errs["priority"])
	assert.Equal(t, "page must be at least 1!", errs["page"])
	assert.Equal(t, "Invalid email address!", errs["email"])
}

func TestErrorsOnShortString(t *testing.T) {
	errs := Errors(GetValidator().Struct(sample{Subject: "ab"}))
	assert.Equal(t, map[string]string{"subject": "subject must be at least 3 characters long!"}, errs)
}

func TestErrorsOnForeignError(t *testing.T) {
	assert.Equal(t, map[string]string{"body": "Invalid request!"}, Errors(errors.New("boom")))
}
