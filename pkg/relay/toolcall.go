package relay

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"codeassist-be/pkg/llm"

	"github.com/google/uuid"
)

// Patterns for backends that inline tool calls as formatted text instead
// of structured fields. Last-resort fallback; structured detection always
// runs first.
var (
	// <tool_call>{"name": "...", "arguments": {...}}</tool_call>
	taggedToolCallRe = regexp.MustCompile(`(?s)<tool_call>\s*(\{.*?\})\s*</tool_call>`)

	// ```json\n{"tool": "...", ...}\n``` fenced blocks
	fencedToolCallRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{[^`]*\"(?:name|tool)\"[^`]*\\})\\s*```")

	// bare {"name": "...", "arguments": {...}} object spanning the text
	bareToolCallRe = regexp.MustCompile(`(?s)(\{\s*"(?:name|tool)"\s*:.*\})`)
)

// ExtractToolCall attempts a best-effort pattern match of a tool
// invocation inlined in free text. Returns false when no pattern applies.
func ExtractToolCall(text string) (*llm.ToolCall, bool) {
	for _, re := range []*regexp.Regexp{taggedToolCallRe, fencedToolCallRe, bareToolCallRe} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if tc := parseToolCallJSON([]byte(m[1])); tc != nil {
			return tc, true
		}
	}
	return nil, false
}

// parseToolCallJSON parses a JSON object with a name/tool field and an
// arguments/parameters/input object.
func parseToolCallJSON(data []byte) *llm.ToolCall {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}

	name, _ := firstString(obj, "name", "tool", "function")
	if name == "" {
		return nil
	}

	var args interface{}
	for _, key := range []string{"arguments", "parameters", "input", "args"} {
		if v, ok := obj[key]; ok {
			args = v
			break
		}
	}

	return &llm.ToolCall{
		Id:        uuid.NewString(),
		Name:      name,
		Arguments: NormalizeArguments(args),
	}
}

// NormalizeArguments flattens any argument shape into a string-keyed map
// with snake_case keys. Backends disagree on casing and nesting; the
// canonical shape is flat and consistent.
func NormalizeArguments(raw interface{}) map[string]string {
	out := make(map[string]string)
	if raw == nil {
		return out
	}

	// Some backends double-encode arguments as a JSON string.
	if s, ok := raw.(string); ok {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			raw = obj
		} else {
			out["input"] = s
			return out
		}
	}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		out["input"] = fmt.Sprint(raw)
		return out
	}

	for k, v := range obj {
		key := ToSnakeCase(k)
		switch val := v.(type) {
		case string:
			out[key] = val
		case nil:
			out[key] = ""
		case float64, bool:
			out[key] = fmt.Sprint(val)
		default:
			// Nested structures are kept as their JSON encoding.
			enc, err := json.Marshal(val)
			if err != nil {
				out[key] = fmt.Sprint(val)
			} else {
				out[key] = string(enc)
			}
		}
	}
	return out
}

// ToSnakeCase converts camelCase or PascalCase keys to snake_case.
// Already-snake keys pass through unchanged.
func ToSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 && s[i-1] != '_' {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func firstString(obj map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}
