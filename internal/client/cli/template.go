package cli

import (
	"text/template"
	"time"
)

var funcs = template.FuncMap{
	"ts": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format(time.RFC3339)
	},
}

const operationsTemplate = `
=== Pending Operations ({{len .}}) ===
{{range .}}
ID:        {{.ID}}
Entity:    {{.Entity}}
Action:    {{.Action}}
Priority:  {{.Priority}}
Created:   {{ts .Timestamp}}
Retries:   {{.Retries}}/{{.MaxRetries}}
{{- if not .NextAttemptAt.IsZero}}
Next try:  {{ts .NextAttemptAt}}
{{- end}}
{{- if .LastError}}
Error:     {{.LastError}}
{{- end}}
{{else}}
No pending operations.
{{end}}`

const deadLettersTemplate = `
=== Dead Letters ({{len .}}) ===
{{range .}}
ID:        {{.Operation.ID}}
Entity:    {{.Operation.Entity}}
Action:    {{.Operation.Action}}
Failed at: {{ts .FailedAt}}
Class:     {{.Class}}
Reason:    {{.Reason}}
{{else}}
No dead letters.
{{end}}`

const statusTemplate = `
=== Sync Status ===

Storage:       {{.Storage}}{{if .Fallback}} (fallback){{end}}
Pending:       {{.Pending}}
Dead letters:  {{.DeadLetters}}
Server:        {{.Server}}
{{- if .Reachable}}
Reachable:     yes ({{.Latency}})
{{- else}}
Reachable:     no{{if .Error}} ({{.Error}}){{end}}
{{- end}}
`

var (
	operationsTmpl  = template.Must(template.New("operations").Funcs(funcs).Parse(operationsTemplate))
	deadLettersTmpl = template.Must(template.New("dead").Funcs(funcs).Parse(deadLettersTemplate))
	statusTmpl      = template.Must(template.New("status").Funcs(funcs).Parse(statusTemplate))
)
