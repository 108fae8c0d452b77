package types

import "encoding/json"

// Decode fills dst from a bus payload. Payloads arrive as raw JSON (bytes
// or string), as generic maps from the config service, or as typed values
// from in-process callers; a nil payload leaves dst untouched.
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
