package dynamo

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// attrsToMap converts a DynamoDB item into plain Go values.
func attrsToMap(item map[string]types.AttributeValue) map[string]any {
	out := make(map[string]any, len(item))
	for name, av := range item {
		out[name] = attrToValue(av)
	}
	return out
}

// attrToValue converts a single attribute value. Numbers are kept as
// json.Number so exact digits survive; unknown attribute types map to
// nil rather than failing the whole item.
func attrToValue(av types.AttributeValue) any {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return json.Number(v.Value)
	case *types.AttributeValueMemberBOOL:
		return v.Value
	case *types.AttributeValueMemberNULL:
		return nil
	case *types.AttributeValueMemberB:
		return v.Value
	case *types.AttributeValueMemberM:
		return attrsToMap(v.Value)
	case *types.AttributeValueMemberL:
		items := make([]any, 0, len(v.Value))
		for _, el := range v.Value {
			items = append(items, attrToValue(el))
		}
		return items
	case *types.AttributeValueMemberSS:
		items := make([]any, 0, len(v.Value))
		for _, el := range v.Value {
			items = append(items, el)
		}
		return items
	case *types.AttributeValueMemberNS:
		items := make([]any, 0, len(v.Value))
		for _, el := range v.Value {
			items = append(items, json.Number(el))
		}
		return items
	case *types.AttributeValueMemberBS:
		items := make([]any, 0, len(v.Value))
		for _, el := range v.Value {
			items = append(items, el)
		}
		return items
	default:
		return nil
	}
}

// keyAttr is the serialisable form of one key attribute. DynamoDB key
// attributes can only be strings, numbers or binary.
type keyAttr struct {
	S *string `json:"s,omitempty"`
	N *string `json:"n,omitempty"`
	B []byte  `json:"b,omitempty"`
}

// encodeCursor packs a LastEvaluatedKey into an opaque string.
func encodeCursor(key map[string]types.AttributeValue) (string, error) {
	if len(key) == 0 {
		return "", nil
	}

	out := make(map[string]keyAttr, len(key))
	for name, av := range key {
		switch v := av.(type) {
		case *types.AttributeValueMemberS:
			s := v.Value
			out[name] = keyAttr{S: &s}
		case *types.AttributeValueMemberN:
			n := v.Value
			out[name] = keyAttr{N: &n}
		case *types.AttributeValueMemberB:
			out[name] = keyAttr{B: v.Value}
		default:
			return "", fmt.Errorf("unsupported key attribute type %T for %q", av, name)
		}
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// decodeCursor unpacks a cursor produced by encodeCursor.
func decodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	if cursor == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode scan cursor: %w", err)
	}

	var in map[string]keyAttr
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode scan cursor: %w", err)
	}

	key := make(map[string]types.AttributeValue, len(in))
	for name, attr := range in {
		switch {
		case attr.S != nil:
			key[name] = &types.AttributeValueMemberS{Value: *attr.S}
		case attr.N != nil:
			key[name] = &types.AttributeValueMemberN{Value: *attr.N}
		case attr.B != nil:
			key[name] = &types.AttributeValueMemberB{Value: attr.B}
		default:
			return nil, fmt.Errorf("decode scan cursor: empty attribute %q", name)
		}
	}

	return key, nil
}
