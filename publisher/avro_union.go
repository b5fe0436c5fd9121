package publisher

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

//go:embed schema.json
var defaultSchemaJSON []byte

// SchemaField is one column of a BigQuery table schema (schema.json layout).
type SchemaField struct {
	Name   string        `json:"name"`
	Type   string        `json:"type"`
	Mode   string        `json:"mode,omitempty"`
	Fields []SchemaField `json:"fields,omitempty"`
}

// BigQuery column types mapped to the Avro union branch name Pub/Sub schema validation expects.
var bqToAvroType = map[string]string{
	"INTEGER":   "long",
	"INT64":     "long",
	"FLOAT":     "double",
	"FLOAT64":   "double",
	"NUMERIC":   "double",
	"BOOLEAN":   "boolean",
	"BOOL":      "boolean",
	"STRING":    "string",
	"DATE":      "string",
	"DATETIME":  "string",
	"TIMESTAMP": "string",
}

func ParseSchema(raw []byte) ([]SchemaField, error) {
	var fields []SchemaField
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return fields, nil
}

func LoadSchemaFile(path string) ([]SchemaField, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSchema(raw)
}

// DefaultSchema is the union schema of all four banking tables.
func DefaultSchema() []SchemaField {
	fields, err := ParseSchema(defaultSchemaJSON)
	if err != nil {
		panic(err)
	}
	return fields
}

type unionField struct {
	name     string
	avroType string
}

// AvroUnionEncoder produces {"data": "<raw json>", "table": label, "record": {...}} where each
// record column is null or {avroType: value}, following the "record" field of the schema.
type AvroUnionEncoder struct {
	fields []unionField
}

func NewAvroUnionEncoder(schema []SchemaField) (*AvroUnionEncoder, error) {
	var record *SchemaField
	for i := range schema {
		if schema[i].Name == "record" {
			record = &schema[i]
			break
		}
	}
	if record == nil {
		return nil, errors.New(`schema has no "record" field`)
	}
	enc := &AvroUnionEncoder{fields: make([]unionField, 0, len(record.Fields))}
	for _, f := range record.Fields {
		avroType, ok := bqToAvroType[strings.ToUpper(f.Type)]
		if !ok {
			return nil, fmt.Errorf("field %q: unsupported type %q", f.Name, f.Type)
		}
		enc.fields = append(enc.fields, unionField{name: f.Name, avroType: avroType})
	}
	return enc, nil
}

func (e *AvroUnionEncoder) Encode(r Record) ([]byte, error) {
	raw, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, err
	}
	var values map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}

	wrapped := make(map[string]any, len(e.fields))
	for _, f := range e.fields {
		v, ok := values[f.name]
		if !ok || v == nil {
			wrapped[f.name] = nil
			continue
		}
		wrapped[f.name] = map[string]any{f.avroType: v}
	}

	return json.Marshal(struct {
		Data   string         `json:"data"`
		Table  string         `json:"table"`
		Record map[string]any `json:"record"`
	}{
		Data:   string(raw),
		Table:  r.Label,
		Record: wrapped,
	})
}
