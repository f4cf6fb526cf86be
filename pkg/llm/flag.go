package llm

import "encoding/json"

// Flag is a boolean decoded by JSON truthiness: false, null, 0, "" and empty
// arrays or objects are false, every other value is true.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch x := v.(type) {
	case bool:
		*f = Flag(x)
	case float64:
		*f = x != 0
	case string:
		*f = x != ""
	case []any:
		*f = len(x) > 0
	case map[string]any:
		*f = len(x) > 0
	default:
		*f = false
	}
	return nil
}
