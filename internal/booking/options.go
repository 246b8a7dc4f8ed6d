package booking

import "encoding/json"

// DecodeMap converts an untyped options/credentials map into a typed struct
// via a JSON round trip, tolerating extra keys.
func DecodeMap(src map[string]any, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
