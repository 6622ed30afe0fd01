package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thinkdesk/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(log, srv.URL+"/", 0)
}

func TestDoSetsHeaders(t *testing.T) {
	var got *http.Request
	var body []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":1}`)
	})

	res, err := c.Do(context.Background(), http.MethodPost, "/tenants", []byte(`{"a":1}`), "tok")
	require.NoError(t, err)

	assert.Equal(t, "/tenants", got.URL.Path)
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.NotEmpty(t, got.Header.Get(RequestIDHeader))
	assert.Equal(t, got.Header.Get(RequestIDHeader), res.RequestID)
	assert.JSONEq(t, `{"a":1}`, string(body))

	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, `{"id":1}`, res.Body)
	assert.Equal(t, "application/json", res.Headers["content-type"])
}

func TestDoWithoutToken(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		fmt.Fprint(w, `{"token":"abc"}`)
	})

	_, err := c.Do(context.Background(), http.MethodPost, "/login", []byte(`{}`), "")
	require.NoError(t, err)
	_, present := got.Header["Authorization"]
	assert.False(t, present)
}

func TestDoStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message":"Tax ID already exists"}`)
	})

	res, err := c.Do(context.Background(), http.MethodPost, "/tenants", []byte(`{}`), "tok")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusConflict, se.StatusCode)
	assert.Equal(t, "Conflict", se.Reason())
	assert.Equal(t, `{"message":"Tax ID already exists"}`, se.Body)
	assert.Equal(t, http.StatusConflict, res.StatusCode, "the result is returned with the error")
	assert.Equal(t, KindStatus, Classify(err))
}

func TestExecuteKeepsGivenRequestID(t *testing.T) {
	var seen string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	})

	res, err := c.Execute(context.Background(), RequestSpec{
		Method:  http.MethodGet,
		URL:     c.BaseURL() + "/metrics",
		Headers: map[string]string{RequestIDHeader: "req-1", "X-Empty": "  "},
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", res.RequestID)
}

func TestExecuteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)
	c := New(log, url, 0)

	_, err := c.Do(context.Background(), http.MethodGet, "/tenants", nil, "tok")
	require.Error(t, err)
	assert.Equal(t, KindTransport, Classify(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{ErrAuthMissing, KindAuthMissing},
		{fmt.Errorf("wrap: %w", ErrMalformedBody), KindMalformedBody},
		{&StatusError{StatusCode: http.StatusForbidden, Status: "403 Forbidden"}, KindForbidden},
		{fmt.Errorf("POST: %w", &StatusError{StatusCode: 500, Status: "500 Internal Server Error"}), KindStatus},
		{errors.New("connection refused"), KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestStatusErrorReasonFallback(t *testing.T) {
	assert.Equal(t, "I'm a teapot", (&StatusError{StatusCode: 418, Status: "418"}).Reason())
	assert.Equal(t, "unexpected response status: 404 Not Found", (&StatusError{StatusCode: 404, Status: "404 Not Found"}).Error())
}

func ticketByID() model.Endpoint {
	return model.Endpoint{
		Method:     http.MethodPut,
		Path:       "/tickets/{id}",
		NeedsAuth:  true,
		PathParams: []model.Param{{Name: "id", In: model.ParamInPath, Required: true, Type: model.TypeInteger}},
		QueryParams: []model.Param{
			{Name: "notify", In: model.ParamInQuery, Type: model.TypeBoolean},
			{Name: "page", In: model.ParamInQuery, Type: model.TypeInteger},
		},
		Body: &model.BodySchema{Example: `{"title":"x"}`},
	}
}

func TestBuildRequest(t *testing.T) {
	req, err := BuildRequest("http://api.local/", ticketByID(),
		map[string]string{"id": " 7 "}, map[string]string{"notify": "true"}, ` {"title":"Printer"} `, "tok")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "http://api.local/tickets/7?notify=true", req.URL)
	assert.Equal(t, "Bearer tok", req.Headers["Authorization"])
	assert.Equal(t, "application/json", req.Headers["Content-Type"])
	assert.Equal(t, `{"title":"Printer"}`, string(req.Body))
}

func TestBuildRequestErrors(t *testing.T) {
	ep := ticketByID()

	_, err := BuildRequest("http://api.local", ep, nil, nil, "", "tok")
	assert.EqualError(t, err, "missing required path param: id")

	_, err = BuildRequest("http://api.local", ep, map[string]string{"id": "7"}, map[string]string{"page": "two"}, "", "tok")
	assert.EqualError(t, err, "invalid integer for page")

	_, err = BuildRequest("http://api.local", ep, map[string]string{"id": "7"}, nil, `{"title":`, "tok")
	assert.ErrorIs(t, err, ErrMalformedBody)
	assert.Equal(t, KindMalformedBody, Classify(err))
}

func TestBuildRequestAuthOnlyWhenNeeded(t *testing.T) {
	login := model.Endpoint{Method: http.MethodPost, Path: "/login", Body: &model.BodySchema{}}
	req, err := BuildRequest("http://api.local", login, nil, nil, `{"login":"a"}`, "tok")
	require.NoError(t, err)
	assert.NotContains(t, req.Headers, "Authorization")

	get := model.Endpoint{Method: http.MethodGet, Path: "/tenants", NeedsAuth: true, Body: &model.BodySchema{}}
	req, err = BuildRequest("http://api.local", get, nil, nil, `{"ignored":true}`, "tok")
	require.NoError(t, err)
	assert.Nil(t, req.Body, "GET never carries a body")
	assert.Equal(t, "Bearer tok", req.Headers["Authorization"])
}

func TestPrettyJSON(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", PrettyJSON(`{"a":1}`))
	assert.Equal(t, "not json", PrettyJSON("not json"))
}

func TestFormatBodySortsKeys(t *testing.T) {
	out := FormatBody("application/json; charset=utf-8", `{"b":1,"a":"x"}`)
	assert.Less(t, strings.Index(out, `"a"`), strings.Index(out, `"b"`))
	assert.Contains(t, out, colorString+`"x"`+colorReset)

	assert.Equal(t, "<html></html>", FormatBody("text/html", "<html></html>"))

	var v any
	require.NoError(t, json.Unmarshal([]byte(`[]`), &v))
	assert.Equal(t, colorBracket+"[]"+colorReset, colorizeJSON(v, 0))
}
