package tracing

import (
	"strings"
)

const (
	// DefaultMaxLength is the fallback truncation length for attributes
	// with no more specific limit.
	DefaultMaxLength = 200

	// MaxSQLLength bounds SQL statements recorded on spans.
	MaxSQLLength = 500

	// MaxRedisLength bounds Redis keys/values recorded on spans.
	MaxRedisLength = 100

	// MaxQdrantLength bounds vector-store query payloads recorded on spans.
	MaxQdrantLength = 100

	// MaxDocumentLength bounds Resume Document content snippets recorded
	// on spans.
	MaxDocumentLength = 150
)

// maskPIILookup is the set of attribute-name substrings that mark a value
// as PII requiring masking rather than mere truncation.
var maskPIILookup = map[string]bool{
	"email":    true,
	"phone":    true,
	"password": true,
	"id_card":  true,
	"address":  true,
	"name":     true,
	"age":      true,
	"secret":   true,
	"token":    true,
}

// SafeAttributeValue returns a span-safe form of value: masked if name
// suggests PII, otherwise truncated to maxLength.
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for keyword := range maskPIILookup {
		if strings.Contains(lowerName, keyword) {
			return MaskPII(value)
		}
	}

	return TruncateString(value, maxLength)
}

// MaskPII masks a personally-identifying value for safe logging/tracing.
func MaskPII(value string) string {
	if value == "" {
		return ""
	}

	runes := []rune(value)
	length := len(runes)

	if length <= 1 {
		return "*"
	}
	// Handles short names like "张三" (len=2) -> "张*", "王小明" (len=3) -> "王*明"
	if length <= 4 {
		if length == 2 {
			return string(runes[0:1]) + "*"
		}
		return string(runes[0:1]) + strings.Repeat("*", length-2) + string(runes[length-1:])
	}

	// Handles longer strings like emails and phone numbers. Keep first 2 and last 2.
	// "myemail@example.com" -> "my***************om"
	// "13812345678" -> "13*******78"
	return string(runes[0:2]) + strings.Repeat("*", length-4) + string(runes[length-2:])
}

// TruncateString truncates s to maxLength runes, inserting an ellipsis
// between the kept head and tail rather than just clipping the end.
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}

	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}

	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeSQL truncates a SQL statement for span attributes.
func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

// SafeRedisKey truncates a Redis key for span attributes.
func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

// SafeDocumentContent truncates a Resume Document content snippet for span
// attributes. Content is not PII-masked here — callers that attach name,
// email, or phone separately go through SafeAttributeValue instead.
func SafeDocumentContent(content string) string {
	return TruncateString(content, MaxDocumentLength)
}
