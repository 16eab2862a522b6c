package jsonx

import "encoding/json"

// Decode converts a bus payload (raw JSON bytes, a JSON string, or an
// already-decoded value such as map[string]any) into dst.
func Decode[T any](src any, dst *T) error {
	switch v := src.(type) {
	case nil:
		return nil
	case *T:
		*dst = *v
		return nil
	case T:
		*dst = v
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
