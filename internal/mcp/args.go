package mcp

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// args is a tool call's argument object.
type args map[string]interface{}

func arguments(request mcp.CallToolRequest) (args, error) {
	if request.Params.Arguments == nil {
		return args{}, nil
	}
	m, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid arguments format")
	}
	return m, nil
}

func (a args) has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

// requireString returns a non-blank string argument.
func (a args) requireString(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing required parameter '%s'", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%s must not be empty", key)
	}
	return s, nil
}

func (a args) optionalString(key string) (string, error) {
	if !a.has(key) {
		return "", nil
	}
	s, ok := a[key].(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return s, nil
}

// optionalInt returns (nil, nil) when key is absent or null. JSON numbers
// arrive as float64 and must be whole.
func (a args) optionalInt(key string) (*int, error) {
	if !a.has(key) {
		return nil, nil
	}
	var n int
	switch v := a[key].(type) {
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%s must be an integer", key)
		}
		n = int(v)
	case int:
		n = v
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", key)
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", key)
		}
		n = i
	default:
		return nil, fmt.Errorf("%s must be an integer", key)
	}
	return &n, nil
}

func (a args) optionalBool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// decode re-marshals an argument into out. Used for structured arguments
// such as move lists.
func (a args) decode(key string, out interface{}) error {
	raw, err := json.Marshal(a[key])
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	return nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to format result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
