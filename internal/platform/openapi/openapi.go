// Package openapi assembles an OpenAPI 3.1 document from operations declared
// by the domain handlers. Request and response schemas are reflected from
// the Go types with invopop/jsonschema.
package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/labstack/echo/v4"
)

const (
	Version    = "3.1.0"
	defsPrefix = "#/$defs/"
	compPrefix = "#/components/schemas/"
)

// Operation describes one route. Path uses echo's ":param" syntax; it is
// converted to "{param}" in the document.
type Operation struct {
	Method      string
	Path        string
	OperationID string
	Summary     string
	Tags        []string
	Parameters  []Parameter
	// RequestBody is a sample value whose type is reflected into the request
	// schema. Nil means no body.
	RequestBody interface{}
	Responses   map[int]Response
}

type Parameter struct {
	Name        string             `json:"name"`
	In          string             `json:"in"`
	Description string             `json:"description,omitempty"`
	Required    bool               `json:"required,omitempty"`
	Schema      *jsonschema.Schema `json:"schema,omitempty"`
}

type Response struct {
	Description string
	// Body is a sample value reflected into the response schema. Nil means
	// an empty body.
	Body    interface{}
	Headers map[string]string
}

// Document is the serialised OpenAPI document.
type Document struct {
	OpenAPI    string                          `json:"openapi"`
	Info       Info                            `json:"info"`
	Servers    []Server                        `json:"servers,omitempty"`
	Paths      map[string]map[string]operation `json:"paths"`
	Components components                      `json:"components"`
}

type Info struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

type Server struct {
	URL string `json:"url"`
}

type operation struct {
	OperationID string              `json:"operationId"`
	Summary     string              `json:"summary,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty"`
	RequestBody *requestBody        `json:"requestBody,omitempty"`
	Responses   map[string]response `json:"responses"`
}

type requestBody struct {
	Required bool                 `json:"required"`
	Content  map[string]mediaType `json:"content"`
}

type response struct {
	Description string               `json:"description"`
	Headers     map[string]header    `json:"headers,omitempty"`
	Content     map[string]mediaType `json:"content,omitempty"`
}

type header struct {
	Description string             `json:"description,omitempty"`
	Schema      *jsonschema.Schema `json:"schema"`
}

type mediaType struct {
	Schema *jsonschema.Schema `json:"schema"`
}

type components struct {
	Schemas map[string]*jsonschema.Schema `json:"schemas"`
}

// Generator collects operations and renders the document on demand.
type Generator struct {
	info    Info
	baseURL string

	mu  sync.Mutex
	ops []Operation
}

func NewGenerator(title, version, baseURL string) *Generator {
	return &Generator{info: Info{Title: title, Version: version}, baseURL: baseURL}
}

// SetDescription sets the document's info.description.
func (g *Generator) SetDescription(desc string) {
	g.info.Description = desc
}

// Add registers operations. Later registrations of the same method and path
// replace earlier ones.
func (g *Generator) Add(ops ...Operation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ops = append(g.ops, ops...)
}

// Generate builds the document from the registered operations.
func (g *Generator) Generate() (*Document, error) {
	g.mu.Lock()
	ops := make([]Operation, len(g.ops))
	copy(ops, g.ops)
	g.mu.Unlock()

	reflector := &jsonschema.Reflector{
		Anonymous:                 true,
		AllowAdditionalProperties: true,
	}

	doc := &Document{
		OpenAPI:    Version,
		Info:       g.info,
		Paths:      make(map[string]map[string]operation),
		Components: components{Schemas: make(map[string]*jsonschema.Schema)},
	}
	if g.baseURL != "" {
		doc.Servers = []Server{{URL: g.baseURL}}
	}

	reflectSchema := func(v interface{}) *jsonschema.Schema {
		s := reflector.Reflect(v)
		if s.Definitions != nil {
			for name, def := range s.Definitions {
				doc.Components.Schemas[name] = def
			}
		}
		s.Version = ""
		s.Definitions = nil
		return s
	}

	for _, op := range ops {
		if op.OperationID == "" {
			return nil, fmt.Errorf("operation %s %s has no operationId", op.Method, op.Path)
		}
		out := operation{
			OperationID: op.OperationID,
			Summary:     op.Summary,
			Tags:        op.Tags,
			Parameters:  op.Parameters,
			Responses:   make(map[string]response, len(op.Responses)),
		}
		if op.RequestBody != nil {
			out.RequestBody = &requestBody{
				Required: true,
				Content:  map[string]mediaType{echo.MIMEApplicationJSON: {Schema: reflectSchema(op.RequestBody)}},
			}
		}
		for code, r := range op.Responses {
			resp := response{Description: r.Description}
			if r.Description == "" {
				resp.Description = http.StatusText(code)
			}
			if r.Body != nil {
				resp.Content = map[string]mediaType{echo.MIMEApplicationJSON: {Schema: reflectSchema(r.Body)}}
			}
			if len(r.Headers) > 0 {
				resp.Headers = make(map[string]header, len(r.Headers))
				for name, desc := range r.Headers {
					resp.Headers[name] = header{Description: desc, Schema: &jsonschema.Schema{Type: "integer"}}
				}
			}
			out.Responses[strconv.Itoa(code)] = resp
		}

		path := convertPath(op.Path)
		if doc.Paths[path] == nil {
			doc.Paths[path] = make(map[string]operation)
		}
		doc.Paths[path][strings.ToLower(op.Method)] = out
	}

	return doc, nil
}

// MarshalJSON renders the document with schema references pointing into
// components.schemas.
func (g *Generator) MarshalJSON() ([]byte, error) {
	doc, err := g.Generate()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal openapi document: %w", err)
	}
	return []byte(strings.ReplaceAll(string(raw), defsPrefix, compPrefix)), nil
}

// Handler serves the document as JSON.
func (g *Generator) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		b, err := g.MarshalJSON()
		if err != nil {
			return err
		}
		return c.JSONBlob(http.StatusOK, b)
	}
}

// RegisterRoutes mounts the document at /openapi.json.
func (g *Generator) RegisterRoutes(e *echo.Echo) {
	e.GET("/openapi.json", g.Handler())
}

// PathNames lists the documented paths in sorted order.
func (d *Document) PathNames() []string {
	names := make([]string, 0, len(d.Paths))
	for p := range d.Paths {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// convertPath rewrites echo's ":param" segments into "{param}".
func convertPath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		if strings.HasPrefix(s, ":") {
			segs[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(segs, "/")
}

// QueryParam builds an optional query parameter.
func QueryParam(name, description string, schema *jsonschema.Schema) Parameter {
	return Parameter{Name: name, In: "query", Description: description, Schema: schema}
}

// PathParam builds a required path parameter of type string.
func PathParam(name, description string) Parameter {
	return Parameter{Name: name, In: "path", Description: description, Required: true, Schema: &jsonschema.Schema{Type: "string"}}
}

// IntegerSchema returns an integer schema bounded to [lo, hi] with a default.
func IntegerSchema(lo, hi, def int) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:    "integer",
		Minimum: json.Number(strconv.Itoa(lo)),
		Maximum: json.Number(strconv.Itoa(hi)),
		Default: def,
	}
}

// MinIntegerSchema returns an integer schema with only a lower bound.
func MinIntegerSchema(lo, def int) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:    "integer",
		Minimum: json.Number(strconv.Itoa(lo)),
		Default: def,
	}
}

// EnumSchema returns a string schema restricted to values. An empty def
// leaves the default unset.
func EnumSchema(values []string, def string) *jsonschema.Schema {
	enum := make([]interface{}, len(values))
	for i, v := range values {
		enum[i] = v
	}
	s := &jsonschema.Schema{Type: "string", Enum: enum}
	if def != "" {
		s.Default = def
	}
	return s
}
