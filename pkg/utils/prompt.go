package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"golang.org/x/term"
)

// Parameter defines a run parameter a mode can prompt for
type Parameter struct {
	Name        string      `yaml:"name"`
	Type        string      `yaml:"type"` // integer, float, string, duration, boolean
	Description string      `yaml:"description"`
	Default     interface{} `yaml:"default"`
	Required    bool        `yaml:"required"`
	Min         interface{} `yaml:"min,omitempty"`
	Max         interface{} `yaml:"max,omitempty"`
	Options     []string    `yaml:"options,omitempty"` // For string enums
}

// EnvKey is the environment variable that overrides the parameter,
// e.g. V2V_NUM_NODES.
func (p Parameter) EnvKey() string {
	return "V2V_" + strings.ToUpper(p.Name)
}

// IsInteractive reports whether stdin is attached to a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// SkipPrompts reports whether prompting is disabled, either explicitly
// through V2V_SKIP_PROMPTS or because there is no terminal to ask on.
func SkipPrompts() bool {
	if v, err := strconv.ParseBool(os.Getenv("V2V_SKIP_PROMPTS")); err == nil {
		return v
	}
	return !IsInteractive()
}

// PromptForParameters prompts the user for mode parameters
func PromptForParameters(params []Parameter) (map[string]interface{}, error) {
	result := make(map[string]interface{})

	for _, param := range params {
		value, err := promptForParameter(param)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", param.Name, err)
		}
		if value != nil {
			result[param.Name] = value
		}
	}

	return result, nil
}

// ResolveParameter returns the value a parameter takes without prompting:
// the environment override, else the default.
func ResolveParameter(param Parameter) (interface{}, error) {
	if envValue := os.Getenv(param.EnvKey()); envValue != "" {
		return parseValue(envValue, param)
	}
	if param.Default != nil {
		return param.Default, nil
	}
	if param.Required {
		return nil, fmt.Errorf("required parameter %s not provided and no default available", param.Name)
	}
	return nil, nil
}

// promptForParameter prompts for a single parameter
func promptForParameter(param Parameter) (interface{}, error) {
	if SkipPrompts() {
		return ResolveParameter(param)
	}

	// An environment value becomes the prompt default
	if envValue := os.Getenv(param.EnvKey()); envValue != "" {
		if parsed, err := parseValue(envValue, param); err == nil {
			param.Default = parsed
		}
	}

	switch param.Type {
	case "boolean":
		return promptBoolean(param)
	case "string":
		if len(param.Options) > 0 {
			return promptOption(param)
		}
		return promptInput(param)
	case "integer", "float", "duration":
		return promptInput(param)
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", param.Type)
	}
}

// Confirm asks a yes/no question. Without a terminal it returns def.
func Confirm(message string, def bool) (bool, error) {
	if SkipPrompts() {
		return def, nil
	}

	var result bool
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &result); err != nil {
		return false, err
	}
	return result, nil
}

// Select asks the user to pick one of options.
func Select(message string, options []string, describe func(string) string) (string, error) {
	prompt := &survey.Select{
		Message: message,
		Options: options,
	}
	if describe != nil {
		prompt.Description = func(value string, _ int) string { return describe(value) }
	}

	var selected string
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	return selected, nil
}

// parseValue parses a raw string according to the parameter type
func parseValue(value string, param Parameter) (interface{}, error) {
	switch param.Type {
	case "integer":
		return strconv.Atoi(value)
	case "float":
		return strconv.ParseFloat(value, 64)
	case "string":
		return value, nil
	case "boolean":
		return strconv.ParseBool(value)
	case "duration":
		return time.ParseDuration(value)
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", param.Type)
	}
}

// CheckRange validates a numeric value against the parameter bounds.
func CheckRange(param Parameter, value float64) error {
	if param.Min != nil && value < toFloat64(param.Min) {
		return fmt.Errorf("%s must be at least %v", param.Name, param.Min)
	}
	if param.Max != nil && value > toFloat64(param.Max) {
		return fmt.Errorf("%s must be at most %v", param.Name, param.Max)
	}
	return nil
}

// promptInput asks for a free-form value and validates it against the
// parameter type and bounds before accepting it.
func promptInput(param Parameter) (interface{}, error) {
	message := param.Description
	if param.Type == "duration" {
		message += " (e.g., 250ms, 1s)"
	}
	prompt := &survey.Input{
		Message: message,
		Default: formatDefault(param),
	}

	validate := func(val interface{}) error {
		raw, _ := val.(string)
		if raw == "" {
			if param.Required || param.Type != "string" {
				return fmt.Errorf("a value is required")
			}
			return nil
		}
		_, err := checkedValue(raw, param)
		return err
	}

	var result string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(validate)); err != nil {
		return nil, err
	}
	if result == "" {
		return nil, nil
	}
	return checkedValue(result, param)
}

// checkedValue parses raw and applies the numeric range check.
func checkedValue(raw string, param Parameter) (interface{}, error) {
	v, err := parseValue(raw, param)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", param.Type, err)
	}
	switch n := v.(type) {
	case int:
		err = CheckRange(param, float64(n))
	case float64:
		err = CheckRange(param, n)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func formatDefault(param Parameter) string {
	switch v := param.Default.(type) {
	case nil:
		return ""
	case float64:
		if param.Type == "integer" {
			return strconv.Itoa(int(v))
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func promptOption(param Parameter) (string, error) {
	prompt := &survey.Select{
		Message: param.Description,
		Options: param.Options,
	}
	if def := formatDefault(param); def != "" {
		prompt.Default = def
	}

	var result string
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func promptBoolean(param Parameter) (bool, error) {
	def, _ := param.Default.(bool)
	if s, ok := param.Default.(string); ok {
		def, _ = strconv.ParseBool(s)
	}

	var result bool
	if err := survey.AskOne(&survey.Confirm{Message: param.Description, Default: def}, &result); err != nil {
		return false, err
	}
	return result, nil
}

func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}
