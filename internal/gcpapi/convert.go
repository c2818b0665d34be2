package gcpapi

import "encoding/json"

// structToMap round-trips a generated API struct through JSON to produce the
// plain map[string]interface{} the engine's Resource.Data expects — the
// generated types carry json tags matching the wire field names already, so
// this is a faithful projection, not a lossy one.
func structToMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
