package wizard

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"thinkdesk/internal/httpclient"
)

const (
	msgAuthMissing   = "Authentication token is missing."
	msgMalformedBody = "Invalid JSON in request body."
	msgForbidden     = "Access Forbidden (403). Your token may be invalid or lack permissions."
	msgTransport     = "Network error: the API could not be reached. Check the log for more details."
)

// ValidationError is a local precondition failure. No request was sent.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Message is the text shown in the error slot for err.
func Message(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Msg
	}

	switch httpclient.Classify(err) {
	case httpclient.KindNone:
		return ""
	case httpclient.KindAuthMissing:
		return msgAuthMissing
	case httpclient.KindMalformedBody:
		return msgMalformedBody
	case httpclient.KindForbidden:
		return msgForbidden
	case httpclient.KindStatus:
		var se *httpclient.StatusError
		errors.As(err, &se)
		return fmt.Sprintf("Error: %d %s. Check the log for more details.", se.StatusCode, se.Reason())
	default:
		return msgTransport
	}
}

// Condition tags a failure the wizard recovers from.
type Condition int

const (
	ConditionNone Condition = iota
	// ConditionDuplicateTaxID: the tenant already exists.
	ConditionDuplicateTaxID
	// ConditionDuplicateRoleName: the role already exists.
	ConditionDuplicateRoleName
)

func (c Condition) String() string {
	switch c {
	case ConditionDuplicateTaxID:
		return "duplicate_tax_id"
	case ConditionDuplicateRoleName:
		return "duplicate_role_name"
	default:
		return "none"
	}
}

var (
	duplicateRe = regexp.MustCompile(`(?i)already\s+(exists|registered|in\s+use)|duplicat`)
	taxIDRe     = regexp.MustCompile(`(?i)tax\s*_?id`)
	roleRe      = regexp.MustCompile(`(?i)\brole\b|role_`)
)

// ClassifyFailure reports whether err, returned by step's request, is a
// recoverable duplicate-entity failure. Only non-403 status errors qualify.
func ClassifyFailure(step Step, err error) Condition {
	var se *httpclient.StatusError
	if !errors.As(err, &se) || httpclient.Classify(err) != httpclient.KindStatus {
		return ConditionNone
	}

	msg := errorText(se.Body)
	if !duplicateRe.MatchString(msg) {
		return ConditionNone
	}

	switch step {
	case StepTenant:
		if taxIDRe.MatchString(msg) {
			return ConditionDuplicateTaxID
		}
	case StepRole:
		if roleRe.MatchString(msg) {
			return ConditionDuplicateRoleName
		}
	}
	return ConditionNone
}

// errorText pulls the human-readable message out of an error payload, falling
// back to the raw body.
func errorText(body string) string {
	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return body
	}
	var parts []string
	for _, key := range []string{"message", "error", "detail", "title"} {
		if s, ok := payload[key].(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return body
	}
	return strings.Join(parts, " ")
}
