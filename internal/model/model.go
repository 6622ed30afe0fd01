package model

type ParamLocation string

type ParamType string

const (
	ParamInPath  ParamLocation = "path"
	ParamInQuery ParamLocation = "query"

	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
	TypeArray   ParamType = "array"
	TypeUnknown ParamType = "unknown"
)

type Param struct {
	Name        string
	In          ParamLocation
	Required    bool
	Type        ParamType
	Description string
}

type BodyField struct {
	Name     string
	Required bool
	Type     ParamType
}

type BodySchema struct {
	Fields  []BodyField
	Example string
}

// Endpoint is one documented API operation, independent of where it was loaded from.
type Endpoint struct {
	Group       string
	Method      string
	Path        string
	Summary     string
	OperationID string
	NeedsAuth   bool

	PathParams  []Param
	QueryParams []Param
	Body        *BodySchema

	ResponseExample string
}

// Group is a named set of endpoints in display order.
type Group struct {
	Name      string
	Endpoints []Endpoint
}

// Key identifies the operation as "METHOD path".
func (e Endpoint) Key() string {
	return e.Method + " " + e.Path
}

// Label is the short human description, falling back to the operation id.
func (e Endpoint) Label() string {
	if e.Summary != "" {
		return e.Summary
	}
	return e.OperationID
}
