package wizard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"thinkdesk/internal/httpclient"
)

// ExecutePost sends jsonBody to path. The bearer token is attached only when
// needsAuth is set, and a missing token fails before any network traffic.
// On success the response is recorded as the last response and its decoded
// body returned. Failures are classified into the error slot; status errors
// other than 403 also record the error body as the last response.
func (w *Wizard) ExecutePost(ctx context.Context, path, jsonBody string, needsAuth bool) (any, error) {
	w.mu.Lock()
	gen := w.gen
	w.mu.Unlock()
	return w.post(ctx, gen, path, jsonBody, needsAuth)
}

// ExecuteGet fetches path with the bearer token. Failures set the error slot
// and leave the last response untouched.
func (w *Wizard) ExecuteGet(ctx context.Context, path string) (any, error) {
	w.mu.Lock()
	gen := w.gen
	w.mu.Unlock()
	return w.get(ctx, gen, path)
}

func (w *Wizard) post(ctx context.Context, gen int, path, jsonBody string, needsAuth bool) (any, error) {
	var token string
	claimed := w.apply(gen, func() {
		w.loading++
		w.errMsg = ""
		w.last = nil
		if w.session != nil {
			token = w.session.Token
		}
	})
	if !claimed {
		return nil, ErrStale
	}
	defer w.end(gen)

	log := w.log.WithFields(logrus.Fields{"method": http.MethodPost, "path": path})

	if !needsAuth {
		token = ""
	} else if token == "" {
		log.Warn("No session token")
		return nil, w.fail(gen, httpclient.ErrAuthMissing)
	}
	if !json.Valid([]byte(jsonBody)) {
		log.Warn("Request body is not valid JSON")
		return nil, w.fail(gen, fmt.Errorf("POST %s: %w", path, httpclient.ErrMalformedBody))
	}

	res, err := w.client.Do(ctx, http.MethodPost, path, []byte(jsonBody), token)
	if err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.StatusCode != http.StatusForbidden {
			w.apply(gen, func() {
				w.last = &Response{Status: se.StatusCode, Body: decodeBody(se.Body)}
			})
		}
		log.WithError(err).WithField("kind", httpclient.Classify(err).String()).Warn("Request failed")
		return nil, w.fail(gen, err)
	}

	body := decodeBody(res.Body)
	if !w.apply(gen, func() { w.last = &Response{Status: res.StatusCode, Body: body} }) {
		return nil, ErrStale
	}
	return body, nil
}

func (w *Wizard) get(ctx context.Context, gen int, path string) (any, error) {
	var token string
	if !w.apply(gen, func() {
		if w.session != nil {
			token = w.session.Token
		}
	}) {
		return nil, ErrStale
	}

	log := w.log.WithFields(logrus.Fields{"method": http.MethodGet, "path": path})

	if token == "" {
		log.Warn("No session token")
		return nil, w.fail(gen, httpclient.ErrAuthMissing)
	}

	res, err := w.client.Do(ctx, http.MethodGet, path, nil, token)
	if err != nil {
		log.WithError(err).Warn("Request failed")
		msg := fmt.Sprintf("Failed to load %s: %s", path, Message(err))
		w.apply(gen, func() { w.errMsg = msg })
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return decodeBody(res.Body), nil
}

// decodeBody decodes a JSON payload keeping numbers exact. Non-JSON payloads
// are returned as text; an empty payload is nil.
func decodeBody(raw string) any {
	if len(bytes.TrimSpace([]byte(raw))) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	return v
}

// FormatBody renders a recorded body as indented JSON.
func FormatBody(body any) string {
	switch b := body.(type) {
	case nil:
		return ""
	case string:
		return httpclient.PrettyJSON(b)
	default:
		out, err := json.MarshalIndent(b, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", b)
		}
		return string(out)
	}
}
