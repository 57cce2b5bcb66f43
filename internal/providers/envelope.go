package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnwrapEnvelope extracts the payload of a tRPC-style response. It prefers
// result.data.json, then result.data, then the body itself. Null values
// count as absent.
func UnwrapEnvelope(body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	root, ok := asObject(body)
	if !ok {
		return body, nil
	}
	result, ok := present(root, "result")
	if !ok {
		return body, nil
	}
	resultObj, ok := asObject(result)
	if !ok {
		return body, nil
	}
	data, ok := present(resultObj, "data")
	if !ok {
		return body, nil
	}
	if dataObj, ok := asObject(data); ok {
		if inner, ok := present(dataObj, "json"); ok {
			return inner, nil
		}
	}
	return data, nil
}

// decodeConnections reads the data array of an unwrapped payload. A payload
// that is itself an array is taken as the rows. A missing or null array
// yields no connections.
func decodeConnections(payload json.RawMessage) ([]Connection, error) {
	rows := json.RawMessage(bytes.TrimSpace(payload))
	if len(rows) == 0 || rows[0] != '[' {
		obj, ok := asObject(payload)
		if !ok {
			return nil, nil
		}
		if rows, ok = present(obj, "data"); !ok {
			return nil, nil
		}
	}
	var conns []Connection
	if err := json.Unmarshal(rows, &conns); err != nil {
		return nil, fmt.Errorf("decode connections: %w", err)
	}
	return conns, nil
}

// errorMessage digs a human message out of an error body. Supported shapes:
// {"message"}, {"error": "..."}, {"error": {"message"}} and
// {"error": {"json": {"message"}}}.
func errorMessage(body []byte) string {
	obj, ok := asObject(bytes.TrimSpace(body))
	if !ok {
		return ""
	}
	if msg := stringField(obj, "message"); msg != "" {
		return msg
	}
	errRaw, ok := present(obj, "error")
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(errRaw, &s); err == nil {
		return s
	}
	errObj, ok := asObject(errRaw)
	if !ok {
		return ""
	}
	if msg := stringField(errObj, "message"); msg != "" {
		return msg
	}
	if inner, ok := present(errObj, "json"); ok {
		if innerObj, ok := asObject(inner); ok {
			return stringField(innerObj, "message")
		}
	}
	return ""
}

func asObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func present(obj map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	v, ok := obj[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

func stringField(obj map[string]json.RawMessage, key string) string {
	raw, ok := present(obj, key)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
