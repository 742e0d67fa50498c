package llmjson_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ai-agent-go/internal/llmjson"
)

func TestExtract_FencedJSON(t *testing.T) {
	in := "Sure, here you go:\n```json\n{\"a\": 1}\n```\nLet me know if you need more."
	assert.JSONEq(t, `{"a": 1}`, llmjson.Extract(in))
}

func TestExtract_BareFence(t *testing.T) {
	in := "```\n{\"a\": 1}\n```"
	assert.JSONEq(t, `{"a": 1}`, llmjson.Extract(in))
}

func TestExtract_RawObject(t *testing.T) {
	in := `{"a": 1, "b": {"c": 2}}`
	assert.JSONEq(t, in, llmjson.Extract(in))
}

func TestExtract_ObjectEmbeddedInProse(t *testing.T) {
	in := `Here is my answer: {"matches": []} thanks.`
	assert.JSONEq(t, `{"matches": []}`, llmjson.Extract(in))
}

func TestExtract_NoObject(t *testing.T) {
	assert.Equal(t, "", llmjson.Extract("sorry I cannot comply"))
}

func TestSanitize_UnescapedInnerQuote(t *testing.T) {
	broken := `{"name": "a "weird" name"}`
	fixed := llmjson.Sanitize(broken)
	assert.Equal(t, `{"name": "a \"weird\" name"}`, fixed)
}

func TestStringOrList_FromArray(t *testing.T) {
	out := llmjson.StringOrList([]interface{}{"Go", "Python", ""})
	assert.Equal(t, []string{"Go", "Python"}, out)
}

func TestStringOrList_FromCommaString(t *testing.T) {
	out := llmjson.StringOrList("Go, Python,  Rust")
	assert.Equal(t, []string{"Go", "Python", "Rust"}, out)
}

func TestStringOrList_Nil(t *testing.T) {
	assert.Nil(t, llmjson.StringOrList(nil))
}
