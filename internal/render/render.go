// Package render turns structured copilot results into markdown, PlantUML and JSON documents.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/abstracta/skywalking-copilot/internal/skywalking/domain"
)

//go:embed templates
var templateFS embed.FS

// Names of the embedded templates.
const (
	tmplServicesMetrics = "services-metrics.md.tmpl"
	tmplTopology        = "topology.puml.tmpl"
	tmplMetricChart     = "metric-chart.md.tmpl"
	tmplTraces          = "traces.md.tmpl"
	tmplAlarms          = "alarms.md.tmpl"
	tmplManifest        = "manifest.json.tmpl"

	systemPromptFile = "templates/system-prompt.md"
)

// noData is shown for points and metrics without a value.
const noData = "no data"

// TraceSummary is the data of the trace interaction summary.
type TraceSummary struct {
	ServiceURL string
	Rows       []domain.SpanRow
}

// AlarmRow is one alarm occurrence of the new alarms summary.
type AlarmRow struct {
	Start      string
	End        string
	Type       string
	Service    string
	ServiceURL string
	Message    string
}

// Manifest is the data of the public manifest.json document.
type Manifest struct {
	AppURL       string
	SupportEmail string
}

// Renderer executes the embedded templates. It is safe for concurrent use.
type Renderer struct {
	templates    *template.Template
	systemPrompt string
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	t, err := template.New("render").Funcs(template.FuncMap{
		"num":    formatNumber,
		"pct":    formatPercent,
		"shape":  nodeShape,
	"alias":  plantUMLAlias,
	"label":  plantUMLLabel,
		"xlabel": formatTimestampID,
		"point":  chartPoint,
		"json":   jsonString,
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("render: parse templates: %w", err)
	}
	prompt, err := templateFS.ReadFile(systemPromptFile)
	if err != nil {
		return nil, fmt.Errorf("render: read system prompt: %w", err)
	}
	return &Renderer{templates: t, systemPrompt: strings.TrimSpace(string(prompt))}, nil
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render: %s: %w", name, err)
	}
	return buf.String(), nil
}

// ServicesMetrics renders the headline metrics of each service as a markdown table.
func (r *Renderer) ServicesMetrics(rows []domain.ServiceSummary) (string, error) {
	return r.execute(tmplServicesMetrics, rows)
}

// Topology renders the services call graph as a PlantUML component diagram.
func (r *Renderer) Topology(t domain.Topology) (string, error) {
	return r.execute(tmplTopology, t)
}

// MetricChart renders an aligned metric chart as a markdown table, one column per series.
func (r *Renderer) MetricChart(title string, c domain.MetricChart) (string, error) {
	return r.execute(tmplMetricChart, struct {
		Title string
		Chart domain.MetricChart
	}{title, c})
}

// Traces renders the call tree of a captured request.
func (r *Renderer) Traces(s TraceSummary) (string, error) {
	return r.execute(tmplTraces, s)
}

// Alarms renders the list of new alarm occurrences.
func (r *Renderer) Alarms(rows []AlarmRow) (string, error) {
	return r.execute(tmplAlarms, rows)
}

// Manifest renders manifest.json.
func (r *Renderer) Manifest(m Manifest) ([]byte, error) {
	m.AppURL = strings.TrimSuffix(m.AppURL, "/")
	out, err := r.execute(tmplManifest, m)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// SystemPrompt returns the instructions given to the language model.
func (r *Renderer) SystemPrompt() string {
	return r.systemPrompt
}

func formatNumber(v *float64) string {
	if v == nil {
		return noData
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// formatPercent formats a value already expressed in percent.
func formatPercent(v *float64) string {
	if v == nil {
		return noData
	}
	return strconv.FormatFloat(*v, 'f', 2, 64) + "%"
}

func chartPoint(s domain.ChartSeries, i int) string {
	if i < 0 || i >= len(s.Values) {
		return noData
	}
	return formatNumber(s.Values[i])
}

// minEpochMillis separates epoch-millisecond ids from small ordinal ids.
const minEpochMillis = 100_000_000_000

// formatTimestampID shows epoch-millisecond ids as UTC HH:MM and any other id unchanged.
func formatTimestampID(id string) string {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n < minEpochMillis {
		return id
	}
	return time.UnixMilli(n).UTC().Format("15:04")
}

var nonWord = regexp.MustCompile(`\W`)

// plantUMLAlias maps a display id to a PlantUML element alias, which only accepts word characters.
func plantUMLAlias(id string) string {
	return nonWord.ReplaceAllString(id, "_")
}

// plantUMLLabel makes a node name safe inside a double-quoted PlantUML label.
func plantUMLLabel(name string) string {
	return strings.NewReplacer(`"`, "'", "\r", " ", "\n", " ").Replace(name)
}

// nodeShape picks the PlantUML element for a topology node type.
func nodeShape(nodeType string) string {
	t := strings.ToLower(nodeType)
	switch {
	case containsAny(t, "mysql", "postgres", "mariadb", "mongo", "redis", "elasticsearch", "oracle", "h2", "database"):
		return "database"
	case containsAny(t, "kafka", "pulsar", "mq"):
		return "queue"
	default:
		return "component"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func jsonString(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
