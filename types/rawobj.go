package types

import (
	"encoding/json"
	"strings"
)

// RawObj is a loosely typed JSON object with dotted-path accessors. Inbox
// payloads are polymorphic over their "type" field, so items are first
// loaded raw and only then decoded into their concrete variant.
type RawObj struct {
	data map[string]any
}

func LoadAsRawObj(raw []byte) (*RawObj, error) {
	var data map[string]any
	err := json.Unmarshal(raw, &data)
	return &RawObj{data}, err
}

func (r *RawObj) GetData() map[string]any {
	return r.data
}

func (r *RawObj) get(key string) (any, bool) {
	keys := strings.Split(key, ".")
	var value any = r.data
	for _, k := range keys {
		if value == nil {
			return nil, false
		}
		m, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return value, true
}

func (r *RawObj) GetString(key string) (string, bool) {
	value, ok := r.get(key)
	if !ok {
		return "", false
	}

	str, ok := value.(string)
	return str, ok
}

func (r *RawObj) MustGetString(key string) string {
	str, ok := r.GetString(key)
	if !ok {
		return ""
	}
	return str
}
