// Package utils holds small, dependency-light helpers shared by the
// storage and API layers.
package utils

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// StringPtr returns a pointer to s, for optional GORM columns that accept
// nil instead of a zero value.
func StringPtr(s string) *string {
	return &s
}

// IntPtr returns a pointer to i.
func IntPtr(i int) *int {
	return &i
}

// ConvertArrayToJSON marshals a string slice (e.g. a Resume Document's
// skills) into the datatypes.JSON column type. A nil or empty slice
// becomes an empty JSON array rather than a null column, so downstream
// unmarshaling never has to special-case null.
func ConvertArrayToJSON(arr []string) datatypes.JSON {
	if len(arr) == 0 {
		return datatypes.JSON("[]")
	}

	jsonBytes, err := json.Marshal(arr)
	if err != nil {
		return datatypes.JSON("[]")
	}

	return datatypes.JSON(jsonBytes)
}
