package api

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// blockSchema validates the envelope of a submitted block before it
// reaches the engine. Only the envelope: the move objects themselves
// are adversarial input the engine filters sub-intent by sub-intent,
// so they stay schema-free.
const blockSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["block", "moves"],
  "properties": {
    "block": {
      "type": "object",
      "required": ["height", "timestamp", "hash"],
      "properties": {
        "height": {"type": "integer", "minimum": 0},
        "timestamp": {"type": "integer"},
        "hash": {"type": "string", "pattern": "^[0-9a-fA-F]+$"}
      }
    },
    "moves": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "move"],
        "properties": {
          "name": {"type": "string", "minLength": 1}
        }
      }
    },
    "admin": {"type": "array"}
  }
}`

// compileBlockSchema builds the validator once at server start.
func compileBlockSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("block.json",
		strings.NewReader(blockSchema)); err != nil {
		panic(fmt.Sprintf("api: add block schema: %v", err))
	}
	schema, err := compiler.Compile("block.json")
	if err != nil {
		panic(fmt.Sprintf("api: compile block schema: %v", err))
	}
	return schema
}
