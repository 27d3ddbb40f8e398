package utils

import (
	"encoding/json"
)

// Marshal generic struct to JSON
func MarshalToJSON[T any](input T) (string, error) {
	jsonData, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

// Unmarshal JSON to generic struct
func UnmarshalFromJSON[T any](data []byte, output *T) error {
	return json.Unmarshal(data, output)
}

// MarshalOrEmpty is MarshalToJSON for values that are known to encode, such
// as normalized response documents. Failures yield "".
func MarshalOrEmpty[T any](input T) string {
	s, err := MarshalToJSON(input)
	if err != nil {
		return ""
	}
	return s
}
