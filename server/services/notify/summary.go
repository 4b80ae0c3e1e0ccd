package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/dto"
)

var statusGlyphs = map[models.JobStatus]string{
	models.JobStatusCreated:  "⏳",
	models.JobStatusAssigned: "🔨",
	models.JobStatusSuccess:  "✅",
	models.JobStatusFailed:   "❌",
	models.JobStatusError:    "💥",
}

// TextSummary renders a single-pipeline result as plain text, one line per
// job, suitable for chat surfaces that do not speak HTML.
func TextSummary(graph *dto.PipelineGraph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pipeline #%s [%s] %s @ %s\n",
		graph.ID, graph.Status, graph.Packages, shortSha(graph.GitSha))
	for _, job := range graph.Jobs {
		glyph := statusGlyphs[job.Status]
		fmt.Fprintf(&b, "%s %s: %s", glyph, job.Arch, job.Status)
		if job.ElapsedSecs != nil {
			fmt.Fprintf(&b, " (%s)", formatElapsed(*job.ElapsedSecs))
		}
		if job.Status == models.JobStatusFailed && job.FailedPackage != nil {
			fmt.Fprintf(&b, " at %s", *job.FailedPackage)
		}
		if job.Status == models.JobStatusError && job.ErrorMessage != nil {
			fmt.Fprintf(&b, ": %s", *job.ErrorMessage)
		}
		b.WriteString("\n")
	}
	return b.String()
}

var htmlSummaryTemplate = template.Must(template.New("summary").Funcs(template.FuncMap{
	"glyph":    func(s models.JobStatus) string { return statusGlyphs[s] },
	"shortSha": shortSha,
	"elapsed":  formatElapsed,
}).Parse(`<b>Pipeline #{{ .ID }}</b> [{{ .Status }}] <code>{{ .Packages }}</code> @ <code>{{ shortSha .GitSha }}</code>
{{- range .Jobs }}
{{ glyph .Status }} <b>{{ .Arch }}</b>: {{ .Status }}{{ if .ElapsedSecs }} ({{ elapsed .ElapsedSecs }}){{ end }}{{ if .LogURL }} <a href="{{ .LogURL }}">log</a>{{ end }}
{{- end }}`))

// HTMLSummary renders a single-pipeline result as a compact HTML fragment for
// chat surfaces that support it.
func HTMLSummary(graph *dto.PipelineGraph) (string, error) {
	var buf bytes.Buffer
	err := htmlSummaryTemplate.Execute(&buf, graph)
	if err != nil {
		return "", fmt.Errorf("error rendering pipeline summary: %w", err)
	}
	return buf.String(), nil
}

func shortSha(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func formatElapsed(secs interface{}) string {
	var v int64
	switch t := secs.(type) {
	case int64:
		v = t
	case *int64:
		if t == nil {
			return ""
		}
		v = *t
	default:
		return ""
	}
	return (time.Duration(v) * time.Second).String()
}
