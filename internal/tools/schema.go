package tools

import "fmt"

// ParameterFromSchema decodes a JSON Schema fragment (as produced by
// Parameter.Schema, or published by an external service) back into a
// Parameter. Unsupported keywords are ignored; unsupported types fail.
func ParameterFromSchema(schema map[string]any) (Parameter, error) {
	kind, _ := schema["type"].(string)
	p := Parameter{Kind: Kind(kind)}
	if desc, ok := schema["description"].(string); ok {
		p.Description = desc
	}

	if enum, ok := schema["enum"].([]any); ok {
		for _, v := range enum {
			s, ok := v.(string)
			if !ok {
				return Parameter{}, fmt.Errorf("non-string enum value %v", v)
			}
			p.EnumValues = append(p.EnumValues, s)
		}
	}

	switch p.Kind {
	case KindString, KindNumber, KindBoolean:
	case "integer":
		// JSON Schema's integer collapses into the number kind.
		p.Kind = KindNumber
	case KindArray:
		items, ok := schema["items"].(map[string]any)
		if !ok {
			return Parameter{}, fmt.Errorf("array schema missing items")
		}
		child, err := ParameterFromSchema(items)
		if err != nil {
			return Parameter{}, fmt.Errorf("items: %w", err)
		}
		p.Items = &child
	case KindObject:
		props, required, err := ParametersFromSchema(schema)
		if err != nil {
			return Parameter{}, err
		}
		p.Properties = props
		p.Required = required
	default:
		return Parameter{}, fmt.Errorf("unsupported schema type %q", kind)
	}

	return p, nil
}

// ParametersFromSchema decodes an object schema's properties and
// required list.
func ParametersFromSchema(schema map[string]any) (map[string]Parameter, []string, error) {
	rawProps, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("object schema missing properties")
	}

	props := make(map[string]Parameter, len(rawProps))
	for name, rawProp := range rawProps {
		propSchema, ok := rawProp.(map[string]any)
		if !ok {
			return nil, nil, fmt.Errorf("property %q is not an object", name)
		}
		p, err := ParameterFromSchema(propSchema)
		if err != nil {
			return nil, nil, fmt.Errorf("property %q: %w", name, err)
		}
		props[name] = p
	}

	var required []string
	if rawReq, ok := schema["required"].([]any); ok {
		for _, v := range rawReq {
			name, ok := v.(string)
			if !ok {
				return nil, nil, fmt.Errorf("non-string required entry %v", v)
			}
			required = append(required, name)
		}
	}
	return props, required, nil
}
