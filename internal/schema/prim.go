package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/gensys/internal/gensys/interm"
	"github.com/l1jgo/gensys/internal/gensys/prim"
)

// typeOf reads a bare type name or the type of a typed value.
func typeOf(n *yaml.Node) (prim.Type, error) {
	if n.Kind == yaml.ScalarNode {
		t, ok := prim.ParseType(n.Value)
		if !ok {
			return prim.Unknown, fmt.Errorf("type %q: %w", n.Value, interm.ErrUnknownType)
		}
		return t, nil
	}
	v, err := typedValue(n)
	if err != nil {
		return prim.Unknown, err
	}
	return v.Type(), nil
}

// typedValue reads [type], [type, value], {type: t} or {type: t, value: v}.
// Without a value the result is Empty of that type.
func typedValue(n *yaml.Node) (prim.Value, error) {
	var typeNode, valueNode *yaml.Node
	switch n.Kind {
	case yaml.SequenceNode:
		if len(n.Content) < 1 || len(n.Content) > 2 {
			return nil, fmt.Errorf("typed value needs [type] or [type, value]: %w", ErrSyntax)
		}
		typeNode = n.Content[0]
		if len(n.Content) == 2 {
			valueNode = n.Content[1]
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			switch n.Content[i].Value {
			case "type":
				typeNode = n.Content[i+1]
			case "value":
				valueNode = n.Content[i+1]
			default:
				return nil, fmt.Errorf("typed value key %q: %w", n.Content[i].Value, ErrSyntax)
			}
		}
		if typeNode == nil {
			return nil, fmt.Errorf("typed value without type: %w", ErrSyntax)
		}
	default:
		return nil, fmt.Errorf("expected a typed value, got %q: %w", n.Value, ErrSyntax)
	}
	t, ok := prim.ParseType(typeNode.Value)
	if !ok {
		return nil, fmt.Errorf("type %q: %w", typeNode.Value, interm.ErrUnknownType)
	}
	if valueNode == nil {
		return prim.Empty{T: t}, nil
	}
	return scalar(t, valueNode)
}

// valueOf reads a value whose type is already known. A typed form is also
// accepted, and its type must agree.
func valueOf(t prim.Type, n *yaml.Node) (prim.Value, error) {
	if n.Kind == yaml.ScalarNode {
		return scalar(t, n)
	}
	v, err := typedValue(n)
	if err != nil {
		return nil, err
	}
	if v.Type() != t {
		return nil, fmt.Errorf("expected %s, got %s: %w", t, v.Type(), interm.ErrTypeMismatch)
	}
	return v, nil
}

// scalar converts a YAML scalar. Numeric types accept numbers and numeric
// strings. Function values cannot be written in YAML.
func scalar(t prim.Type, n *yaml.Node) (prim.Value, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("%s value must be a scalar: %w", t, ErrSyntax)
	}
	switch t {
	case prim.StrT:
		return prim.Str(n.Value), nil
	case prim.FuncT:
		return nil, fmt.Errorf("func values cannot be given in schema files: %w", ErrSyntax)
	}
	v, err := prim.ParseNumber(t, n.Value)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, interm.ErrTypeMismatch)
	}
	return v, nil
}
