package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

// Document collects operations as routes are mounted and serves them as OpenAPI 3.
type Document struct {
	mu   sync.RWMutex
	spec *openapi3.T
}

func New(title, version string) *Document {
	return &Document{
		spec: &openapi3.T{
			OpenAPI:    "3.0.3",
			Info:       &openapi3.Info{Title: title, Version: version},
			Paths:      openapi3.NewPaths(),
			Components: &openapi3.Components{},
		},
	}
}

func (d *Document) Server(url, description string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Servers = append(d.spec.Servers, &openapi3.Server{URL: url, Description: description})
	return d
}

func (d *Document) Tag(name, description string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Tags = append(d.spec.Tags, &openapi3.Tag{Name: name, Description: description})
	return d
}

// Operation starts describing method+path. Nothing is recorded until Add is called.
func (d *Document) Operation(method, path string) *Operation {
	return &Operation{
		doc:    d,
		method: strings.ToUpper(method),
		path:   echoPathToOpenAPI(path),
		op:     &openapi3.Operation{Responses: openapi3.NewResponses()},
	}
}

func (d *Document) Spec() *openapi3.T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.spec
}

func (d *Document) JSON() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return json.MarshalIndent(d.spec, "", "  ")
}

func (d *Document) YAML() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	intermediate, err := d.spec.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(intermediate)
}

func (d *Document) JSONHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := d.JSON()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSONBlob(http.StatusOK, data)
	}
}

func (d *Document) YAMLHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := d.YAML()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.Blob(http.StatusOK, "application/yaml", data)
	}
}

func (d *Document) add(method, path string, op *openapi3.Operation) {
	d.mu.Lock()
	defer d.mu.Unlock()

	item := d.spec.Paths.Find(path)
	if item == nil {
		item = &openapi3.PathItem{}
		d.spec.Paths.Set(path, item)
	}
	item.SetOperation(method, op)
}

type Operation struct {
	doc    *Document
	method string
	path   string
	op     *openapi3.Operation
}

func (o *Operation) Summary(summary string) *Operation {
	o.op.Summary = summary
	return o
}

func (o *Operation) Tags(tags ...string) *Operation {
	o.op.Tags = append(o.op.Tags, tags...)
	return o
}

func (o *Operation) Header(name, description string, required bool) *Operation {
	o.op.Parameters = append(o.op.Parameters, &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:        name,
			In:          openapi3.ParameterInHeader,
			Description: description,
			Required:    required,
			Schema:      openapi3.NewStringSchema().NewRef(),
		},
	})
	return o
}

// Body documents a JSON request body shaped like example.
func (o *Operation) Body(example any) *Operation {
	o.op.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().WithJSONSchemaRef(schemaOf(example)),
	}
	return o
}

// RawBody documents an opaque request body, such as a signed webhook payload.
func (o *Operation) RawBody(contentType string) *Operation {
	o.op.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().WithContent(openapi3.NewContentWithSchema(
			openapi3.NewStringSchema(), []string{contentType},
		)),
	}
	return o
}

func (o *Operation) Response(status int, example any, description string) *Operation {
	resp := openapi3.NewResponse().WithDescription(description)
	if example != nil {
		resp.WithJSONSchemaRef(schemaOf(example))
	}
	o.op.Responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{Value: resp})
	return o
}

func (o *Operation) Add() {
	o.doc.add(o.method, o.path, o.op)
}

func echoPathToOpenAPI(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if strings.HasPrefix(part, ":") {
			parts[i] = "{" + strings.TrimPrefix(part, ":") + "}"
		}
	}
	return strings.Join(parts, "/")
}

func schemaOf(example any) *openapi3.SchemaRef {
	if example == nil {
		return openapi3.NewObjectSchema().NewRef()
	}
	return schemaFor(reflect.TypeOf(example)).NewRef()
}

func schemaFor(t reflect.Type) *openapi3.Schema {
	if t.Kind() == reflect.Pointer {
		s := schemaFor(t.Elem())
		s.Nullable = true
		return s
	}

	switch t.Kind() {
	case reflect.String:
		return openapi3.NewStringSchema()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return openapi3.NewIntegerSchema()
	case reflect.Float32, reflect.Float64:
		return openapi3.NewFloat64Schema()
	case reflect.Bool:
		return openapi3.NewBoolSchema()
	case reflect.Slice, reflect.Array:
		return openapi3.NewArraySchema().WithItems(schemaFor(t.Elem()))
	case reflect.Map:
		return openapi3.NewObjectSchema().WithAdditionalProperties(schemaFor(t.Elem()))
	case reflect.Struct:
		if t.PkgPath() == "time" && t.Name() == "Time" {
			return openapi3.NewDateTimeSchema()
		}
		return structSchema(t)
	default:
		return openapi3.NewObjectSchema()
	}
}

// structSchema follows encoding/json naming: the json tag name wins, "-" hides a
// field and omitempty makes it optional.
func structSchema(t reflect.Type) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}

		parts := strings.Split(tag, ",")
		name := field.Name
		if parts[0] != "" {
			name = parts[0]
		}

		optional := false
		for _, opt := range parts[1:] {
			if opt == "omitempty" {
				optional = true
			}
		}

		schema.WithProperty(name, schemaFor(field.Type))
		if !optional {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}
