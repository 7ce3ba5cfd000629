package validate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
	"github.com/xeipuuv/gojsonschema"
)

// jsonSchemaProperty is one property entry of a translated draft-7 document.
type jsonSchemaProperty struct {
	Type   any    `json:"type"`
	Format string `json:"format,omitempty"`
}

// jsonSchemaDocument is the draft-7 document produced by translateSchema.
type jsonSchemaDocument struct {
	Schema               string                         `json:"$schema"`
	Type                 string                         `json:"type"`
	Required             []string                       `json:"required,omitempty"`
	Properties           map[string]jsonSchemaProperty  `json:"properties"`
	AdditionalProperties bool                            `json:"additionalProperties"`
}

// fieldTypeToJSONSchema maps a field type to its draft-7 "type" and, for
// date/datetime, the string format that constrains its layout.
func fieldTypeToJSONSchema(ft model.FieldType) (string, string, error) {
	switch ft {
	case model.FieldString, model.FieldText:
		return "string", "", nil
	case model.FieldNumber:
		return "number", "", nil
	case model.FieldInteger:
		return "integer", "", nil
	case model.FieldBoolean:
		return "boolean", "", nil
	case model.FieldDate:
		return "string", "date", nil
	case model.FieldDatetime:
		return "string", "date-time", nil
	default:
		return "", "", model.ErrorSchema(nil, "unsupported field type: %s", ft)
	}
}

// translateSchema converts the store's compact field-list schema shape into
// an equivalent JSON Schema draft-7 document: required fields, a closed
// object (additionalProperties: false, enforcing the spec's unknown-field
// rejection rule), and a ["<type>", "null"] union for nullable fields.
func translateSchema(s model.Schema) (*jsonSchemaDocument, error) {
	doc := &jsonSchemaDocument{
		Schema:               "http://json-schema.org/draft-07/schema#",
		Type:                 "object",
		Properties:           make(map[string]jsonSchemaProperty, len(s.Fields)),
		AdditionalProperties: false,
	}

	for _, f := range s.Fields {
		jsType, format, err := fieldTypeToJSONSchema(f.Type)
		if err != nil {
			return nil, err
		}
		prop := jsonSchemaProperty{Type: jsType, Format: format}
		if f.Nullable {
			prop.Type = []string{jsType, "null"}
		}
		doc.Properties[f.Name] = prop
		if f.Required {
			doc.Required = append(doc.Required, f.Name)
		}
	}

	return doc, nil
}

// CompileSchema translates s and compiles it into a reusable gojsonschema
// validator, meant to be compiled once per entry type version and cached
// rather than recompiled for every validated entry.
func CompileSchema(s model.Schema) (*gojsonschema.Schema, error) {
	doc, err := translateSchema(s)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, model.ErrorSchema(err, "failed to marshal translated schema")
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, model.ErrorSchema(err, "failed to compile schema")
	}
	return compiled, nil
}

// ValidateEntryData checks data against the entry type's compiled schema and
// the absolute size ceiling, then re-checks date/datetime fields by hand:
// draft-7's "format" keyword is advisory-only in gojsonschema, so a
// malformed date string would otherwise pass validation.
func ValidateEntryData(compiled *gojsonschema.Schema, schema model.Schema, data json.RawMessage) error {
	if len(data) > MaxDataBytes {
		return model.ErrorValidation("entry data exceeds maximum size of %d bytes", MaxDataBytes)
	}

	result, err := compiled.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return model.ErrorValidation("entry data is not valid JSON: %v", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return model.ErrorValidation("entry data failed schema validation: %v", msgs)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return model.ErrorValidation("entry data must be a JSON object")
	}
	for _, f := range schema.Fields {
		raw, present := obj[f.Name]
		if !present || string(raw) == "null" {
			continue
		}
		if err := checkDateLikeField(f, raw); err != nil {
			return err
		}
	}
	return nil
}

func checkDateLikeField(f model.SchemaField, raw json.RawMessage) error {
	var s string
	switch f.Type {
	case model.FieldDate:
		if err := json.Unmarshal(raw, &s); err != nil {
			return model.ErrorValidation("field %s must be a date string", f.Name)
		}
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return model.ErrorValidation("field %s must be YYYY-MM-DD", f.Name)
		}
	case model.FieldDatetime:
		if err := json.Unmarshal(raw, &s); err != nil {
			return model.ErrorValidation("field %s must be an ISO-8601 string", f.Name)
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return model.ErrorValidation("field %s must be ISO-8601", f.Name)
		}
	}
	return nil
}

// FTSContentForEntry extracts the text to index for full-text search: the
// top-level "body" string field if present, otherwise the entry's whole
// JSON object serialized as text.
func FTSContentForEntry(data json.RawMessage) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return string(data)
	}
	if body, ok := obj["body"]; ok {
		var s string
		if err := json.Unmarshal(body, &s); err == nil {
			return s
		}
	}
	return string(data)
}

// ValidateSchemaShape checks that a raw schema_json document parses into a
// well-formed Schema before it is persisted as a new entry type version.
func ValidateSchemaShape(raw json.RawMessage) (model.Schema, error) {
	var s model.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.Schema{}, model.ErrorSchema(err, "schema_json is not valid JSON")
	}
	if len(s.Fields) == 0 {
		return model.Schema{}, model.ErrorSchema(nil, "schema must declare at least one field")
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return model.Schema{}, model.ErrorSchema(nil, "schema field name missing")
		}
		if _, dup := seen[f.Name]; dup {
			return model.Schema{}, model.ErrorSchema(nil, "duplicate schema field name: %s", f.Name)
		}
		seen[f.Name] = struct{}{}
		if _, _, err := fieldTypeToJSONSchema(f.Type); err != nil {
			return model.Schema{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return s, nil
}
