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

// MarshalIndented renders input as two-space indented JSON.
func MarshalIndented[T any](input T) ([]byte, error) {
	return json.MarshalIndent(input, "", "  ")
}
