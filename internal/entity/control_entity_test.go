package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDomainCategory(t *testing.T) {
	tests := []struct {
		in   string
		want DomainCategory
		ok   bool
	}{
		{"Technological", DomainTechnological, true},
		{"organizational controls", DomainOrganizational, true},
		{" People ", DomainPeople, true},
		{"A.7.4", DomainPhysical, true},
		{"Financial", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDomainCategory(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestControlValidate(t *testing.T) {
	c := &Control{Id: "c1", ControlId: "CTRL-r1-001", RiskId: "r1", UserId: "u1"}
	assert.NoError(t, c.Validate())

	c.RiskId = ""
	c.UserId = " "
	err := c.Validate()
	assert.True(t, errors.Is(err, ErrMissingRequiredField))
	assert.Contains(t, err.Error(), "risk_id, user_id")
}

func TestControlIdFor(t *testing.T) {
	assert.Equal(t, "CTRL-r42-007", ControlIdFor("r42", 7))
	assert.Equal(t, "A.8.", DomainTechnological.AnnexPrefix())
}
