package mcputils

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ArgumentGetter is an interface for getting arguments from a request.
// mcp.CallToolRequest satisfies it.
type ArgumentGetter interface {
	GetArguments() map[string]any
}

// CoerceBindArguments binds MCP request arguments to a target struct using
// its json tags. Some MCP clients send every parameter as a string, so
// numbers and booleans encoded as strings ("10", "true") are accepted, and
// string values are trimmed.
//
// Unknown arguments are ignored.
func CoerceBindArguments[T any](request ArgumentGetter, target *T) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringScalarHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
		Result:  target,
		TagName: "json",
	})
	if err != nil {
		return err
	}

	args := request.GetArguments()
	if args == nil {
		args = map[string]any{}
	}
	return decoder.Decode(args)
}

// stringScalarHook converts string inputs for numeric and boolean targets
// through JSON so "10" and "true" decode, while "ten" still fails.
func stringScalarHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	raw := strings.TrimSpace(data.(string))

	switch {
	case to.Kind() == reflect.String:
		return raw, nil
	case raw == "":
		return data, nil
	case to.Kind() == reflect.Bool:
		if raw == "true" || raw == "false" {
			return raw == "true", nil
		}
	case to.Kind() >= reflect.Int && to.Kind() <= reflect.Float64:
		var n json.Number
		if err := json.Unmarshal([]byte(raw), &n); err == nil {
			return n, nil
		}
	}
	return data, nil
}
