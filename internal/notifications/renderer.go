package notifications

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/medinaflav/manga-tracker/internal/domain"
)

const (
	subjectTemplate = `New chapter of {{.Title}}`
	bodyTemplate    = `{{.Title}}: chapter {{.NewChapter}} is out.
{{- if not .OldChapter.IsZero }}
You last heard about chapter {{.OldChapter}}.
{{- end }}`
)

// Renderer turns release events into human-readable messages.
type Renderer struct {
	subject *template.Template
	body    *template.Template
}

// NewRenderer parses the message templates.
func NewRenderer() (*Renderer, error) {
	subject, err := template.New("subject").Parse(subjectTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse subject template: %w", err)
	}
	body, err := template.New("body").Parse(bodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse body template: %w", err)
	}
	return &Renderer{subject: subject, body: body}, nil
}

// Render produces the subject and body for a release event.
func (r *Renderer) Render(event domain.ReleaseEvent) (subject, body string, err error) {
	var sb, bb bytes.Buffer
	if err := r.subject.Execute(&sb, event); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := r.body.Execute(&bb, event); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return sb.String(), bb.String(), nil
}
