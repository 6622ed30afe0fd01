package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"thinkdesk/internal/catalog"
	"thinkdesk/internal/model"
)

const (
	defaultTimeout = 10 * time.Second

	orderExtension = "x-order"

	// BearerScheme is the security scheme name attached to authenticated operations.
	BearerScheme = "bearerAuth"
)

// Load reads an OpenAPI document from an http(s) URL or a local file ("@path" or plain path).
func Load(ctx context.Context, source string) (*openapi3.T, error) {
	source = strings.TrimSpace(source)
	loader := &openapi3.Loader{Context: ctx}
	loader.IsExternalRefsAllowed = true

	var (
		doc *openapi3.T
		err error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		doc, err = fetch(ctx, loader, source)
	} else {
		doc, err = loader.LoadFromFile(strings.TrimPrefix(source, "@"))
	}
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

func fetch(ctx context.Context, loader *openapi3.Loader, url string) (*openapi3.T, error) {
	client := &http.Client{Timeout: defaultTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return loader.LoadFromIoReader(resp.Body)
}

// Build renders a catalog as a validated OpenAPI 3 document.
func Build(ctx context.Context, cat catalog.Catalog, serverURL string) (*openapi3.T, error) {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       cat.Title,
			Description: cat.Description,
			Version:     cat.Version,
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			SecuritySchemes: openapi3.SecuritySchemes{
				BearerScheme: &openapi3.SecuritySchemeRef{Value: openapi3.NewJWTSecurityScheme()},
			},
		},
	}
	if serverURL != "" {
		doc.Servers = openapi3.Servers{{URL: serverURL}}
	}

	n := 0
	for _, g := range cat.Groups {
		doc.Tags = append(doc.Tags, &openapi3.Tag{Name: g.Name})
		for _, ep := range g.Endpoints {
			op, err := buildOperation(g.Name, ep)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", ep.Method, ep.Path, err)
			}
			op.Extensions = map[string]any{orderExtension: n}
			n++
			item := doc.Paths.Value(ep.Path)
			if item == nil {
				item = &openapi3.PathItem{}
				doc.Paths.Set(ep.Path, item)
			}
			item.SetOperation(ep.Method, op)
		}
	}

	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validating generated document: %w", err)
	}
	return doc, nil
}

func buildOperation(group string, ep catalog.Endpoint) (*openapi3.Operation, error) {
	op := openapi3.NewOperation()
	op.Tags = []string{group}
	op.Summary = ep.Description
	op.OperationID = operationID(ep.Method, ep.Path)

	for _, p := range ep.PathParams {
		param := openapi3.NewPathParameter(p.Name).
			WithDescription(p.Description).
			WithSchema(openapi3.NewInt64Schema())
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{Value: param})
	}

	if ep.RequestExample != "" {
		var ex any
		if err := json.Unmarshal([]byte(ep.RequestExample), &ex); err != nil {
			return nil, fmt.Errorf("request example: %w", err)
		}
		body := openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(inferSchema(ex))
		body.Content.Get("application/json").Example = ex
		op.RequestBody = &openapi3.RequestBodyRef{Value: body}
	}

	status, desc := 200, "OK"
	if ep.Method == http.MethodDelete {
		status, desc = 204, "No Content"
	}
	ok := openapi3.NewResponse().WithDescription(desc)
	if ep.ResponseExample != "" {
		var ex any
		if err := json.Unmarshal([]byte(ep.ResponseExample), &ex); err != nil {
			return nil, fmt.Errorf("response example: %w", err)
		}
		ok.WithJSONSchema(inferSchema(ex))
		ok.Content.Get("application/json").Example = ex
	}

	opts := []openapi3.NewResponsesOption{openapi3.WithStatus(status, &openapi3.ResponseRef{Value: ok})}
	if ep.NeedsAuth {
		forbidden := openapi3.NewResponse().WithDescription("Forbidden")
		opts = append(opts, openapi3.WithStatus(403, &openapi3.ResponseRef{Value: forbidden}))
		op.Security = &openapi3.SecurityRequirements{openapi3.NewSecurityRequirement().Authenticate(BearerScheme)}
	} else {
		op.Security = &openapi3.SecurityRequirements{}
	}
	op.Responses = openapi3.NewResponses(opts...)

	return op, nil
}

// operationID derives a stable identifier, e.g. GET /tenants/{id} -> getTenantsById.
func operationID(method, path string) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(method))
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			sb.WriteString("By")
			seg = strings.Trim(seg, "{}")
		}
		sb.WriteString(strings.ToUpper(seg[:1]) + seg[1:])
	}
	return sb.String()
}

func inferSchema(v any) *openapi3.Schema {
	switch val := v.(type) {
	case map[string]any:
		s := openapi3.NewObjectSchema()
		for k, prop := range val {
			s.WithProperty(k, inferSchema(prop))
		}
		return s
	case []any:
		items := openapi3.NewSchema()
		if len(val) > 0 {
			items = inferSchema(val[0])
		}
		return openapi3.NewArraySchema().WithItems(items)
	case string:
		return openapi3.NewStringSchema()
	case bool:
		return openapi3.NewBoolSchema()
	case float64:
		if val == float64(int64(val)) {
			return openapi3.NewInt64Schema()
		}
		return openapi3.NewFloat64Schema()
	default:
		s := openapi3.NewSchema()
		s.Nullable = true
		return s
	}
}

var methodRank = map[string]int{"POST": 0, "GET": 1, "PUT": 2, "PATCH": 3, "DELETE": 4}

// ExtractEndpoints flattens a document into endpoints. Operations carrying x-order
// keep that order; the rest sort by tag, path and method.
func ExtractEndpoints(doc *openapi3.T) []model.Endpoint {
	var out []model.Endpoint
	if doc == nil || doc.Paths == nil {
		return out
	}
	order := map[*model.Endpoint]int{}
	var ranked []*model.Endpoint

	tagRank := map[string]int{}
	for i, t := range doc.Tags {
		if t != nil {
			tagRank[t.Name] = i
		}
	}

	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}

		commonParams := item.Parameters

		addOp := func(method string, op *openapi3.Operation) {
			if op == nil {
				return
			}

			ep := model.Endpoint{
				Method:      method,
				Path:        path,
				Summary:     strings.TrimSpace(firstNonEmpty(op.Summary, op.Description)),
				OperationID: strings.TrimSpace(op.OperationID),
				NeedsAuth:   needsAuth(doc, op),
			}
			if len(op.Tags) > 0 {
				ep.Group = op.Tags[0]
			}

			params := append(openapi3.Parameters{}, commonParams...)
			params = append(params, op.Parameters...)

			for _, p := range params {
				if p == nil || p.Value == nil {
					continue
				}
				mp := model.Param{
					Name:        p.Value.Name,
					Required:    p.Value.Required,
					Description: strings.TrimSpace(p.Value.Description),
					Type:        schemaType(p.Value.Schema),
				}
				switch p.Value.In {
				case "path":
					mp.In = model.ParamInPath
					ep.PathParams = append(ep.PathParams, mp)
				case "query":
					mp.In = model.ParamInQuery
					ep.QueryParams = append(ep.QueryParams, mp)
				}
			}

			ep.Body = extractBody(op)
			ep.ResponseExample = extractResponseExample(op)

			p := &ep
			ranked = append(ranked, p)
			if n, ok := extensionInt(op.Extensions[orderExtension]); ok {
				order[p] = n
			} else {
				order[p] = -1
			}
		}

		addOp(http.MethodPost, item.Post)
		addOp(http.MethodGet, item.Get)
		addOp(http.MethodPut, item.Put)
		addOp(http.MethodPatch, item.Patch)
		addOp(http.MethodDelete, item.Delete)
	}

	rank := func(group string) int {
		if r, ok := tagRank[group]; ok {
			return r
		}
		return len(tagRank)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if oa, ob := order[a], order[b]; oa >= 0 && ob >= 0 {
			return oa < ob
		}
		if ra, rb := rank(a.Group), rank(b.Group); ra != rb {
			return ra < rb
		}
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return methodRank[a.Method] < methodRank[b.Method]
	})

	for _, ep := range ranked {
		out = append(out, *ep)
	}
	return out
}

func extensionInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case json.RawMessage:
		var i int
		err := json.Unmarshal(n, &i)
		return i, err == nil
	}
	return 0, false
}

// Groups buckets ordered endpoints by group, keeping first-seen group order.
func Groups(eps []model.Endpoint) []model.Group {
	var out []model.Group
	idx := map[string]int{}
	for _, ep := range eps {
		name := ep.Group
		if name == "" {
			name = "Other"
		}
		i, ok := idx[name]
		if !ok {
			i = len(out)
			idx[name] = i
			out = append(out, model.Group{Name: name})
		}
		out[i].Endpoints = append(out[i].Endpoints, ep)
	}
	return out
}

func needsAuth(doc *openapi3.T, op *openapi3.Operation) bool {
	if op.Security != nil {
		return len(*op.Security) > 0
	}
	return len(doc.Security) > 0
}

func schemaType(ref *openapi3.SchemaRef) model.ParamType {
	if ref == nil || ref.Value == nil {
		return model.TypeUnknown
	}
	if ref.Value.Type == nil {
		return model.TypeUnknown
	}
	switch {
	case ref.Value.Type.Is("string"):
		return model.TypeString
	case ref.Value.Type.Is("integer"):
		return model.TypeInteger
	case ref.Value.Type.Is("number"):
		return model.TypeNumber
	case ref.Value.Type.Is("boolean"):
		return model.TypeBoolean
	case ref.Value.Type.Is("object"):
		return model.TypeObject
	case ref.Value.Type.Is("array"):
		return model.TypeArray
	}
	return model.TypeUnknown
}

func extractBody(op *openapi3.Operation) *model.BodySchema {
	if op == nil || op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}

	mt := op.RequestBody.Value.Content.Get("application/json")
	if mt == nil {
		return nil
	}

	body := &model.BodySchema{Example: prettyExample(mt.Example)}
	if mt.Schema == nil || mt.Schema.Value == nil {
		return body
	}

	s := mt.Schema.Value
	required := map[string]bool{}
	for _, name := range s.Required {
		required[name] = true
	}
	for name, prop := range s.Properties {
		body.Fields = append(body.Fields, model.BodyField{Name: name, Required: required[name], Type: schemaType(prop)})
	}
	sort.Slice(body.Fields, func(i, j int) bool { return body.Fields[i].Name < body.Fields[j].Name })

	return body
}

func extractResponseExample(op *openapi3.Operation) string {
	if op.Responses == nil {
		return ""
	}
	for _, code := range []string{"200", "201"} {
		ref := op.Responses.Value(code)
		if ref == nil || ref.Value == nil {
			continue
		}
		if mt := ref.Value.Content.Get("application/json"); mt != nil {
			return prettyExample(mt.Example)
		}
	}
	return ""
}

func prettyExample(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

// Export renders the document as "json" or "yaml".
func Export(doc *openapi3.T, format string) ([]byte, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "", "json":
		return append(b, '\n'), nil
	case "yaml", "yml":
		var node yaml.Node
		if err := yaml.Unmarshal(b, &node); err != nil {
			return nil, err
		}
		blockStyle(&node)
		return yaml.Marshal(&node)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// blockStyle drops the flow style yaml keeps from the JSON source.
func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
