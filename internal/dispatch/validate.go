package dispatch

import (
	"encoding/json"

	"github.com/intella-ai/toolhub/internal/tools"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// validateArguments checks parsed arguments against the tool's input
// schema. Failures identify the offending parameter so the orchestrator
// can feed a useful message back to the model.
func validateArguments(t tools.Tool, args map[string]any) *tools.ExecutionResult {
	sch, err := compileSchema(t)
	if err != nil {
		// A broken schema is the provider's fault, not the model's.
		return tools.Fail(tools.CodeExecutionError, "tool %q has an invalid schema: %v", t.Name, err)
	}

	// jsonschema validates JSON-decoded values; round-trip the argument
	// map so typed values (ints etc.) compare as JSON numbers.
	decoded, err := roundTrip(args)
	if err != nil {
		return tools.Fail(tools.CodeInvalidArguments, "arguments are not valid JSON: %v", err)
	}

	if err := sch.Validate(decoded); err != nil {
		return tools.Fail(tools.CodeInvalidArguments, "invalid arguments for tool %q: %v", t.Name, err)
	}
	return nil
}

func compileSchema(t tools.Tool) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(t.Schema())
	if err != nil {
		return nil, err
	}
	var schemaObj any
	if err := json.Unmarshal(raw, &schemaObj); err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaObj); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}

func roundTrip(args map[string]any) (any, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}
