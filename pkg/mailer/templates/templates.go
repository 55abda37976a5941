package templates

import (
	"bytes"
	"embed"
	"fmt"
	"reflect"
	"strings"
	texttpl "text/template"
	"time"
)

//go:embed *.tmpl
var FS embed.FS

// Template names. Each has <name>.subject.tmpl and <name>.text.tmpl.
const (
	ForgotPassword = "forgot_password"
)

// EmailData is the data every template receives.
type EmailData struct {
	AppName string
	Name    string
	Email   string

	ResetURL  string
	ExpiresAt time.Time
	ExpiresIn string
	Time      time.Time
}

// defaultFn supports pipe usage: {{ .Value | default "Fallback" }}
func defaultFn(fallback any, value any) any {
	switch x := value.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return fallback
		}
		return x
	case nil:
		return fallback
	default:
		rv := reflect.ValueOf(value)
		if !rv.IsValid() || rv.IsZero() {
			return fallback
		}
		return value
	}
}

var funcs = texttpl.FuncMap{
	"formatTime": func(t time.Time, layout string) string { return t.UTC().Format(layout) },
	"upper":      strings.ToUpper,
	"default":    defaultFn,
}

func renderFile(filename string, data any) (string, error) {
	tpl, err := texttpl.New(filename).Funcs(funcs).ParseFS(FS, filename)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", filename, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("exec %q: %w", filename, err)
	}
	return buf.String(), nil
}

// Render renders <name>.subject.tmpl and <name>.text.tmpl. The subject is
// collapsed to a single line.
func Render(name string, data any) (subject, text string, err error) {
	subject, err = renderFile(name+".subject.tmpl", data)
	if err != nil {
		return "", "", err
	}
	text, err = renderFile(name+".text.tmpl", data)
	if err != nil {
		return "", "", err
	}
	return strings.Join(strings.Fields(subject), " "), text, nil
}
