package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"thinkdesk/internal/model"
)

const RequestIDHeader = "X-Request-Id"

var (
	// ErrAuthMissing is returned before any network traffic when a call needs a token and none is set.
	ErrAuthMissing = errors.New("authentication token is missing")
	// ErrMalformedBody is returned when a request body string is not valid JSON.
	ErrMalformedBody = errors.New("malformed request body")
)

// StatusError is returned for responses outside 2xx. Body holds the raw error payload.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return "unexpected response status: " + e.Status
}

// Reason returns the reason phrase, e.g. "Conflict" for "409 Conflict".
func (e *StatusError) Reason() string {
	if _, reason, ok := strings.Cut(e.Status, " "); ok && reason != "" {
		return reason
	}
	return http.StatusText(e.StatusCode)
}

type Kind int

const (
	KindNone Kind = iota
	KindAuthMissing
	KindMalformedBody
	KindForbidden
	KindStatus
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindAuthMissing:
		return "auth_missing"
	case KindMalformedBody:
		return "malformed_body"
	case KindForbidden:
		return "forbidden"
	case KindStatus:
		return "status"
	default:
		return "transport"
	}
}

// Classify maps an error returned by this package to its Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrAuthMissing) {
		return KindAuthMissing
	}
	if errors.Is(err, ErrMalformedBody) {
		return KindMalformedBody
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode == http.StatusForbidden {
			return KindForbidden
		}
		return KindStatus
	}
	return KindTransport
}

type Result struct {
	StatusCode int
	Status     string
	Elapsed    time.Duration
	Headers    map[string]string
	Body       string
	RequestID  string
}

type RequestSpec struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Client talks to one API base URL.
type Client struct {
	log     logrus.FieldLogger
	baseURL string
	http    *http.Client
}

// New creates a client. A zero timeout leaves the transport default in place.
func New(log logrus.FieldLogger, baseURL string, timeout time.Duration) *Client {
	return &Client{
		log:     log.WithField("component", "httpclient"),
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends body (already JSON, may be nil) to path. The Authorization header is only
// attached when token is non-empty. Non-2xx responses return both the Result and a *StatusError.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, token string) (Result, error) {
	headers := map[string]string{"Accept": "application/json"}
	if body != nil {
		headers["Content-Type"] = "application/json"
	}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	res, err := c.Execute(ctx, RequestSpec{Method: method, URL: c.baseURL + path, Headers: headers, Body: body})
	if err != nil {
		return Result{}, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res, &StatusError{StatusCode: res.StatusCode, Status: res.Status, Body: res.Body}
	}
	return res, nil
}

// Execute sends a prepared request and returns whatever the server answered.
func (c *Client) Execute(ctx context.Context, reqSpec RequestSpec) (Result, error) {
	var body io.Reader
	if len(reqSpec.Body) > 0 {
		body = bytes.NewReader(reqSpec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, reqSpec.Method, reqSpec.URL, body)
	if err != nil {
		return Result{}, err
	}
	for k, v := range reqSpec.Headers {
		if strings.TrimSpace(v) != "" {
			req.Header.Set(k, v)
		}
	}
	reqID := req.Header.Get(RequestIDHeader)
	if reqID == "" {
		reqID = uuid.NewString()
		req.Header.Set(RequestIDHeader, reqID)
	}

	log := c.log.WithFields(logrus.Fields{
		"method":     reqSpec.Method,
		"url":        reqSpec.URL,
		"request_id": reqID,
	})

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.WithError(err).Warn("Request failed")
		return Result{}, fmt.Errorf("%s %s: %w", reqSpec.Method, reqSpec.URL, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Warn("Reading response body failed")
		return Result{}, fmt.Errorf("reading response body: %w", err)
	}

	headers := map[string]string{}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		headers["content-type"] = ct
	}

	log.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"elapsed": elapsed,
	}).Debug("Request completed")

	return Result{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Elapsed:    elapsed,
		Headers:    headers,
		Body:       string(b),
		RequestID:  reqID,
	}, nil
}

// BuildRequest prepares an ad-hoc request for a documented endpoint.
func BuildRequest(baseURL string, ep model.Endpoint, pathVals, queryVals map[string]string, bodyRaw, token string) (RequestSpec, error) {
	path, err := substitutePath(ep.Path, ep.PathParams, pathVals)
	if err != nil {
		return RequestSpec{}, err
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/") + path)
	if err != nil {
		return RequestSpec{}, err
	}

	q := u.Query()
	for _, p := range ep.QueryParams {
		v := strings.TrimSpace(queryVals[p.Name])
		if v == "" {
			if p.Required {
				return RequestSpec{}, fmt.Errorf("missing required query param: %s", p.Name)
			}
			continue
		}
		switch p.Type {
		case model.TypeInteger:
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				return RequestSpec{}, fmt.Errorf("invalid integer for %s", p.Name)
			}
		case model.TypeNumber:
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return RequestSpec{}, fmt.Errorf("invalid number for %s", p.Name)
			}
		case model.TypeBoolean:
			if _, err := strconv.ParseBool(v); err != nil {
				return RequestSpec{}, fmt.Errorf("invalid boolean for %s", p.Name)
			}
		}
		q.Set(p.Name, v)
	}
	u.RawQuery = q.Encode()

	headers := map[string]string{"Accept": "application/json"}
	if ep.NeedsAuth && token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	var body []byte
	if shouldSendBody(ep) {
		raw := strings.TrimSpace(bodyRaw)
		if raw != "" {
			if !json.Valid([]byte(raw)) {
				return RequestSpec{}, ErrMalformedBody
			}
			body = []byte(raw)
			headers["Content-Type"] = "application/json"
		}
	}

	return RequestSpec{Method: ep.Method, URL: u.String(), Headers: headers, Body: body}, nil
}

func substitutePath(pathTpl string, params []model.Param, vals map[string]string) (string, error) {
	out := pathTpl
	for _, p := range params {
		v := strings.TrimSpace(vals[p.Name])
		if v == "" {
			return "", fmt.Errorf("missing required path param: %s", p.Name)
		}
		out = strings.ReplaceAll(out, "{"+p.Name+"}", url.PathEscape(v))
	}
	return out, nil
}

func shouldSendBody(ep model.Endpoint) bool {
	switch strings.ToUpper(ep.Method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return ep.Body != nil
	default:
		return false
	}
}

// PrettyJSON indents a JSON payload, returning it unchanged when it is not JSON.
func PrettyJSON(body string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(body), "", "  "); err != nil {
		return body
	}
	return buf.String()
}

func FormatBody(contentType string, body string) string {
	ct := strings.ToLower(contentType)
	if ct == "" || strings.Contains(ct, "application/json") {
		var v any
		if err := json.Unmarshal([]byte(body), &v); err == nil {
			return colorizeJSON(v, 0)
		}
	}
	return body
}

// ansi color codes
const (
	colorReset   = "\033[0m"
	colorKey     = "\033[36m" // cyan for keys
	colorString  = "\033[32m" // green for strings
	colorNumber  = "\033[33m" // yellow for numbers
	colorBool    = "\033[35m" // magenta for booleans
	colorNull    = "\033[90m" // gray for null
	colorBracket = "\033[37m" // white for brackets
)

func colorizeJSON(v any, indent int) string {
	prefix := strings.Repeat("  ", indent)

	switch val := v.(type) {
	case nil:
		return colorNull + "null" + colorReset
	case bool:
		return colorBool + strconv.FormatBool(val) + colorReset
	case float64:
		return colorNumber + strconv.FormatFloat(val, 'f', -1, 64) + colorReset
	case string:
		b, _ := json.Marshal(val)
		return colorString + string(b) + colorReset
	case []any:
		if len(val) == 0 {
			return colorBracket + "[]" + colorReset
		}
		var sb strings.Builder
		sb.WriteString(colorBracket + "[" + colorReset + "\n")
		for i, item := range val {
			sb.WriteString(prefix + "  " + colorizeJSON(item, indent+1))
			if i < len(val)-1 {
				sb.WriteString(",")
			}
			sb.WriteString("\n")
		}
		sb.WriteString(prefix + colorBracket + "]" + colorReset)
		return sb.String()
	case map[string]any:
		if len(val) == 0 {
			return colorBracket + "{}" + colorReset
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		sb.WriteString(colorBracket + "{" + colorReset + "\n")
		for i, k := range keys {
			sb.WriteString(prefix + "  " + colorKey + `"` + k + `"` + colorReset + ": ")
			sb.WriteString(colorizeJSON(val[k], indent+1))
			if i < len(keys)-1 {
				sb.WriteString(",")
			}
			sb.WriteString("\n")
		}
		sb.WriteString(prefix + colorBracket + "}" + colorReset)
		return sb.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
