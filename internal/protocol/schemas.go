package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var schemaFiles = map[string]string{
	TypeHello:         "hello.schema.json",
	TypeSetParam:      "set_param.schema.json",
	TypeApplyPreset:   "apply_preset.schema.json",
	TypeResetDefaults: "reset_defaults.schema.json",
	TypeSettingsPanel: "settings_panel.schema.json",
	TypeResize:        "resize.schema.json",
}

var clientSchemas = mustCompileSchemas()

func mustCompileSchemas() map[string]*jsonschema.Schema {
	c := jsonschema.NewCompiler()
	for _, name := range schemaFiles {
		b, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			panic(err)
		}
		if err := c.AddResource(name, bytes.NewReader(b)); err != nil {
			panic(fmt.Sprintf("schema %s: %v", name, err))
		}
	}
	out := map[string]*jsonschema.Schema{}
	for typ, name := range schemaFiles {
		out[typ] = c.MustCompile(name)
	}
	return out
}

// ValidateClient checks a raw client message against the schema for its type.
func ValidateClient(msgType string, raw []byte) error {
	s, ok := clientSchemas[msgType]
	if !ok {
		return fmt.Errorf("unknown message type %q", msgType)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
