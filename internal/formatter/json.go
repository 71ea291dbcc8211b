package formatter

import (
	"encoding/json"
)

// ToJSON converts a value, typically a graph or a query result, to indented JSON.
func ToJSON(v any) (string, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}
