package templatefmt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// DefaultNotificationTemplate renders one alert transition as a single chat line.
const DefaultNotificationTemplate = `[{{ upper .State }}] {{ .Alert.Name }} ({{ .Alert.Severity }}) service={{ .Alert.Service }} ` +
	`error_rate={{ pct .Alert.Value }} threshold={{ pct .Alert.Threshold }} window={{ .Alert.WindowMinutes }}m at {{ millis .Alert.Timestamp }}`

// FuncMap returns shared notification template helpers.
// Params: none.
// Returns: helper map used by config validation and runtime rendering.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"pct":    FormatPercent,
		"millis": FormatMillis,
		"upper":  upper,
		"json":   MarshalJSON,
	}
}

// ParseNotificationTemplate parses one notification template with shared helpers.
// Params: template name and body.
// Returns: compiled template or parse error.
func ParseNotificationTemplate(name, body string) (*template.Template, error) {
	return template.New(name).Funcs(FuncMap()).Option("missingkey=error").Parse(body)
}

// Render executes template against payload.
// Params: compiled template and payload.
// Returns: trimmed text or execution error.
func Render(tmpl *template.Template, payload any) (string, error) {
	var out bytes.Buffer
	if err := tmpl.Execute(&out, payload); err != nil {
		return "", fmt.Errorf("render template %q: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(out.String()), nil
}

// FormatPercent renders a 0..1 ratio as percent with one decimal.
func FormatPercent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// FormatMillis renders unix milliseconds as RFC 3339 UTC.
func FormatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func upper(value any) string {
	return strings.ToUpper(fmt.Sprint(value))
}

// MarshalJSON renders value into JSON string for template embedding.
// Params: template value of any type.
// Returns: marshaled JSON string or "null" on marshal failure.
func MarshalJSON(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return "null"
	}
	return string(encoded)
}
