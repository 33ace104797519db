package serverutils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"iso-risk-agent-be/internal/repository/contract"
	"iso-risk-agent-be/pkg/agent/state"
	"iso-risk-agent-be/pkg/agent/workflow"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &ValidationError{Fields: map[string]string{"Title": "is required"}}, fiber.StatusBadRequest},
		{"fiber error", fiber.NewError(fiber.StatusTeapot, "tea"), fiber.StatusTeapot},
		{"unknown session", fmt.Errorf("resume: %w", contract.ErrUnknownSession), fiber.StatusNotFound},
		{"not found", contract.ErrNotFound, fiber.StatusNotFound},
		{"conflict", contract.ErrSessionConflict, fiber.StatusConflict},
		{"not resumable", workflow.ErrNotResumable, fiber.StatusConflict},
		{"bad intent", state.ErrInvalidIntent, fiber.StatusBadRequest},
		{"anything else", errors.New("mongo: timeout"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := StatusFor(tt.err)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	_, msg := StatusFor(errors.New("mongo: auth failed for user admin"))
	assert.NotContains(t, msg, "mongo")
}

func TestValidateRequestCollectsFields(t *testing.T) {
	type req struct {
		Name string `validate:"required"`
		Kind string `validate:"omitempty,oneof=a b"`
	}
	err := ValidateRequest(req{Kind: "c"})
	var ve *ValidationError
	if assert.ErrorAs(t, err, &ve) {
		assert.Equal(t, "is required", ve.Fields["Name"])
		assert.Equal(t, "must be one of: a b", ve.Fields["Kind"])
	}
	assert.NoError(t, ValidateRequest(req{Name: "x"}))
}
