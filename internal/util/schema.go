package util

import (
	"encoding/json"
	"reflect"
	"strings"
)

// JSONSchema describes the JSON object a struct marshals to. Field names come
// from json tags, descriptions from `description` tags and closed value sets
// from comma separated `enum` tags. Fields without omitempty are required.
func JSONSchema(v any) map[string]any {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	properties := make(map[string]any, t.NumField())
	var required []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, omitEmpty, skip := jsonName(f)
		if skip {
			continue
		}
		prop := map[string]any{"type": jsonType(f.Type)}
		if d := f.Tag.Get("description"); d != "" {
			prop["description"] = d
		}
		if e := f.Tag.Get("enum"); e != "" {
			prop["enum"] = strings.Split(e, ",")
		}
		properties[name] = prop
		if !omitEmpty && f.Type.Kind() != reflect.Ptr {
			required = append(required, name)
		}
	}

	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// SchemaString renders JSONSchema(v) as compact JSON for embedding in prompts.
func SchemaString(v any) string {
	b, err := json.Marshal(JSONSchema(v))
	if err != nil {
		return "{}"
	}
	return string(b)
}

func jsonName(f reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name = f.Name
	if parts[0] != "" {
		name = parts[0]
	}
	for _, p := range parts[1:] {
		if strings.TrimSpace(p) == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return "object"
	}
}
