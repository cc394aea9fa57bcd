// Package prompt renders chat prompts for the language model from templates.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"betterats/internal/errors"
)

// Role tags a message for the generation backend.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Variable names available to templates.
const (
	VarFormatInstructions = "format_instructions"
	VarRequirement        = "requirement"
	VarDocuments          = "documents"
)

// Message is a single role-tagged prompt message with fully resolved text.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Rendered is the ordered message sequence sent to the model for one task.
type Rendered []Message

// Vars holds the values substituted into a template.
type Vars map[string]any

// Template is a parsed system and user instruction pair. It is safe for
// concurrent use once created.
type Template struct {
	name   string
	system *template.Template
	user   *template.Template
}

// New parses a template pair. Placeholders use Go template syntax, e.g.
// {{.requirement}} or {{range .documents}}{{.SourcePath}}{{end}}.
func New(name, system, user string) (*Template, error) {
	if strings.TrimSpace(user) == "" {
		return nil, errors.NewTemplateError(errors.ErrCodeTemplateInvalid,
			fmt.Sprintf("template %s has an empty user instruction", name), nil).
			WithContext("template", name)
	}

	sys, err := parse(name+".system", system)
	if err != nil {
		return nil, err
	}
	usr, err := parse(name+".user", user)
	if err != nil {
		return nil, err
	}
	return &Template{name: name, system: sys, user: usr}, nil
}

// MustNew is like New but panics on error. It is meant for built-in templates.
func MustNew(name, system, user string) *Template {
	t, err := New(name, system, user)
	if err != nil {
		panic(err)
	}
	return t
}

func parse(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, errors.NewTemplateError(errors.ErrCodeTemplateInvalid,
			fmt.Sprintf("template %s could not be parsed", name), err).
			WithContext("template", name)
	}
	return t, nil
}

// Name returns the task kind the template belongs to.
func (t *Template) Name() string {
	return t.name
}

// Render resolves every placeholder and returns the system and user messages.
// A placeholder without a value in vars yields a template error.
func (t *Template) Render(vars Vars) (Rendered, error) {
	system, err := execute(t.system, vars)
	if err != nil {
		return nil, err
	}
	user, err := execute(t.user, vars)
	if err != nil {
		return nil, err
	}

	messages := make(Rendered, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: system})
	}
	messages = append(messages, Message{Role: RoleUser, Content: user})
	return messages, nil
}

func execute(t *template.Template, vars Vars) (string, error) {
	var buf bytes.Buffer
	// a nil map would make every lookup fail with a less useful message
	if vars == nil {
		vars = Vars{}
	}
	if err := t.Execute(&buf, map[string]any(vars)); err != nil {
		return "", errors.NewTemplateError(errors.ErrCodeTemplateMissingVar,
			fmt.Sprintf("template %s could not be rendered", t.Name()), err).
			WithContext("template", t.Name())
	}
	return buf.String(), nil
}
