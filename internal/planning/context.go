package planning

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"crewline/internal/domain"
)

var funcs = template.FuncMap{
	"join": strings.Join,
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}

var roadmapContext = template.Must(template.New("roadmap").Funcs(funcs).Parse(`# Project
Name: {{.Project.Name}}
{{- with .Project.Description}}
Description: {{.}}{{end}}
Start date: {{.Project.CreatedAt}}

# Team
{{- range .Members}}
- {{if .Role}}{{.Role}}{{else}}(no role){{end}} [{{.Kind}}]
{{- else}}
- nobody has joined yet
{{- end}}

# Request
{{- if .Request.Goals}}
Goals:
{{- range .Request.Goals}}
- {{.}}
{{- end}}{{end}}
{{- if .Request.Constraints}}
Constraints:
{{- range .Request.Constraints}}
- {{.}}
{{- end}}{{end}}
{{- if .Request.TechStack}}
Tech stack: {{join .Request.TechStack ", "}}{{end}}
{{- if gt .Request.DurationWeeks 0}}
Duration: {{.Request.DurationWeeks}} weeks{{end}}
{{- with .Request.Notes}}
Notes: {{.}}{{end}}
{{- if .Existing}}

# Existing tasks
{{- range .Existing}}
- [{{.Status}}] {{.Title}}
{{- end}}{{end}}
`))

var elaborateContext = template.Must(template.New("elaborate").Funcs(funcs).Parse(`# Project
Name: {{.Project.Name}}
{{- with .Project.Description}}
Description: {{.}}{{end}}

# Team roles
{{- range .Members}}
- {{if .Role}}{{.Role}}{{else}}(no role){{end}}
{{- end}}

# Task
Title: {{.Task.Title}}
Type: {{.Task.Type}}
Priority: {{.Task.Priority}}
Status: {{.Task.Status}}
{{- with deref .Task.AssignedRole}}
Role: {{.}}{{end}}
{{- with .Task.Description}}
Description: {{.}}{{end}}
{{- if .Task.Subtasks}}
Subtasks:
{{- range .Task.Subtasks}}
- [{{if .IsDone}}x{{else}} {{end}}] {{.Title}}
{{- end}}{{end}}
{{- if .Prerequisites}}
Depends on:
{{- range .Prerequisites}}
- [{{.Status}}] {{.Title}}
{{- end}}{{end}}
{{- with .Focus}}

Focus on: {{.}}{{end}}
`))

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s context: %w", t.Name(), err)
	}
	return buf.String(), nil
}

type roadmapData struct {
	Project  domain.Project
	Members  []domain.Member
	Request  PlanRequest
	Existing []domain.Task
}

type elaborateData struct {
	Project       domain.Project
	Members       []domain.Member
	Task          domain.Task
	Prerequisites []domain.Task
	Focus         string
}
