package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "paths": {"type": "array", "items": {"type": "string"}},
    "tags": {"type": "array", "items": {"type": "string"}},
    "env": {"type": "string"},
    "threads": {"type": "integer", "minimum": 0},
    "scenarioName": {"type": "string"},
    "configDir": {"type": "string"},
    "dryRun": {"type": "boolean"},
    "clean": {"type": "boolean"},
    "workingDir": {"type": "string"},
    "output": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "dir": {"type": "string"},
        "html": {"type": "boolean"},
        "junitXml": {"type": "boolean"},
        "cucumberJson": {"type": "boolean"},
        "jsonLines": {"type": "boolean"}
      }
    }
  }
}`

// ValidateJSON checks raw config JSON against the schema so typos and
// wrong types are reported by field, before any scenario executes.
func ValidateJSON(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}
