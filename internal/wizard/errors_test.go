package wizard

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thinkdesk/internal/httpclient"
)

func statusErr(code int, status, body string) error {
	return fmt.Errorf("POST: %w", &httpclient.StatusError{StatusCode: code, Status: status, Body: body})
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		step Step
		err  error
		want Condition
	}{
		{"tenant duplicate tax id", StepTenant, statusErr(409, "409 Conflict", `{"message":"Tax ID already exists"}`), ConditionDuplicateTaxID},
		{"tenant duplicate in error field", StepTenant, statusErr(400, "400 Bad Request", `{"error":"Duplicate taxID 12.345.678/0001-99"}`), ConditionDuplicateTaxID},
		{"tenant raw text body", StepTenant, statusErr(500, "500 Internal Server Error", `ERROR: duplicate key value violates unique constraint "tenant_tax_id_key"`), ConditionDuplicateTaxID},
		{"tenant unique format rule", StepTenant, statusErr(400, "400 Bad Request", `{"message":"taxID must be a unique 14-digit number"}`), ConditionNone},
		{"tenant other conflict", StepTenant, statusErr(409, "409 Conflict", `{"message":"Trading name already exists"}`), ConditionNone},
		{"tenant forbidden", StepTenant, statusErr(403, "403 Forbidden", `{"message":"Tax ID already exists"}`), ConditionNone},
		{"role duplicate", StepRole, statusErr(400, "400 Bad Request", `{"message":"Role ROLE_TECHNICIAN already exists"}`), ConditionDuplicateRoleName},
		{"role message on tenant step", StepTenant, statusErr(400, "400 Bad Request", `{"message":"Role ROLE_TECHNICIAN already exists"}`), ConditionNone},
		{"tax id message on role step", StepRole, statusErr(409, "409 Conflict", `{"message":"Tax ID already exists"}`), ConditionNone},
		{"user step never recovers", StepUser, statusErr(409, "409 Conflict", `{"message":"Role already exists"}`), ConditionNone},
		{"transport", StepTenant, errors.New("dial tcp: connection refused"), ConditionNone},
		{"nil", StepTenant, nil, ConditionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFailure(tt.step, tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, msgAuthMissing, Message(httpclient.ErrAuthMissing))
	assert.Equal(t, msgMalformedBody, Message(fmt.Errorf("x: %w", httpclient.ErrMalformedBody)))
	assert.Equal(t, msgForbidden, Message(statusErr(403, "403 Forbidden", `anything`)))
	assert.Equal(t, "Error: 409 Conflict. Check the log for more details.", Message(statusErr(409, "409 Conflict", `{}`)))
	assert.Equal(t, "Error: 418 I'm a teapot. Check the log for more details.", Message(statusErr(418, "418", ``)))
	assert.Equal(t, msgTransport, Message(errors.New("EOF")))
	assert.Equal(t, "Pick one.", Message(validationf("Pick one.")))
	assert.Empty(t, Message(nil))
}

func TestNewSessionDecodesClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "tecnico@example.com",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("not-the-server-key"))
	require.NoError(t, err)

	s := NewSession(token)
	assert.Equal(t, token, s.Token)
	assert.Equal(t, "tecnico@example.com", s.Subject)
	assert.True(t, s.ExpiresAt.Equal(exp))
	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.Expired(exp.Add(time.Minute)))
}

func TestNewSessionOpaqueToken(t *testing.T) {
	s := NewSession("abc")
	assert.Equal(t, "abc", s.Token)
	assert.Empty(t, s.Subject)
	assert.True(t, s.ExpiresAt.IsZero())
	assert.False(t, s.Expired(time.Now()))
}

func TestStepOrder(t *testing.T) {
	var got []string
	for s := StepLogin; ; s = s.Next() {
		got = append(got, s.String())
		if s == StepComplete {
			break
		}
	}
	assert.Equal(t, []string{"login", "tenant", "role", "user", "sla", "ticket", "complete"}, got)
	assert.Equal(t, StepComplete, StepComplete.Next())
	assert.Equal(t, "Create SLA Policy", StepSLA.Title())
}

func TestFormsFields(t *testing.T) {
	f := DefaultForms(fixedNow)
	assert.Equal(t, "2024-10-29T17:30", f.Ticket.ResolutionDueDate)

	fields := f.Fields(StepSLA)
	require.Len(t, fields, 8)
	assert.Equal(t, Field{Key: "responseTimeMinutes", Label: "Response time (min)", Value: "120"}, fields[1])

	require.NoError(t, f.Set(StepSLA, "responseTimeMinutes", " 60 "))
	require.NoError(t, f.Set(StepSLA, "isActive", "false"))
	assert.Equal(t, 60, f.SLA.ResponseTimeMinutes)
	assert.False(t, f.SLA.IsActive)

	assert.Error(t, f.Set(StepSLA, "responseTimeMinutes", "soon"))
	assert.Error(t, f.Set(StepSLA, "isActive", "maybe"))
	assert.Error(t, f.Set(StepSLA, "nope", "x"))
	assert.Empty(t, f.Fields(StepComplete))
}

func TestFormatDueDate(t *testing.T) {
	for in, want := range map[string]string{
		"2024-10-28T18:00":          "2024-10-28T18:00:00.000Z",
		"2024-10-28T18:00:30":       "2024-10-28T18:00:30.000Z",
		"2024-10-28T15:00:00-03:00": "2024-10-28T18:00:00.000Z",
	} {
		got, err := FormatDueDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := FormatDueDate("28/10/2024")
	assert.Error(t, err)
}
