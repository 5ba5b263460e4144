package skywalking

import (
	"bytes"
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/abstracta/skywalking-copilot/internal/skywalking/domain"
)

//go:embed queries/*.gql
var queryFS embed.FS

// Names of the embedded query documents.
const (
	queryListServices     = "list-services.gql"
	queryFindService      = "find-service.gql"
	queryServiceMetric    = "service-metric.gql"
	queryServicesTopology = "services-topology.gql"
	queryAlarms           = "alarms.gql"
	queryTrace            = "trace.gql"
)

var nonWord = regexp.MustCompile(`\W`)

// MetricAlias identifies the service and metric a batched sub-query was issued for.
type MetricAlias struct {
	Service string
	Metric  string
}

// QueryBuilder renders GraphQL documents from the embedded query templates.
type QueryBuilder struct {
	templates *template.Template
}

// NewQueryBuilder parses the embedded query templates.
func NewQueryBuilder() (*QueryBuilder, error) {
	t, err := template.New("queries").
		Funcs(template.FuncMap{"gql": EncodeLiteral}).
		ParseFS(queryFS, "queries/*.gql")
	if err != nil {
		return nil, fmt.Errorf("skywalking: parse queries: %w", err)
	}
	return &QueryBuilder{templates: t}, nil
}

// Build renders the named query document with data.
func (b *QueryBuilder) Build(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := b.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("skywalking: render %s: %w", name, err)
	}
	return buf.String(), nil
}

// MetricAliasName returns the alias of the sub-query for service and metric:
// {shortName}_{metric} with non-word characters replaced by underscores. Aliases not starting with a
// letter or underscore are prefixed with one, as GraphQL names require.
func MetricAliasName(service domain.Service, metric string) string {
	alias := nonWord.ReplaceAllString(service.ShortName, "_") + "_" + nonWord.ReplaceAllString(metric, "_")
	if c := alias[0]; c >= '0' && c <= '9' {
		alias = "_" + alias
	}
	return alias
}

// uniqueAlias appends _2, _3, ... to alias until it is not in taken.
func uniqueAlias(alias string, taken map[string]MetricAlias) string {
	if _, ok := taken[alias]; !ok {
		return alias
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", alias, n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

// BuildMetricsQuery batches one execExpression sub-query per (service, metric) pair into a single
// document. metrics maps metric names to MQE expressions. The returned index maps each alias back
// to the service short name and metric name. Short names that sanitize to the same alias get
// numbered suffixes so every sub-query keeps a distinct alias.
func (b *QueryBuilder) BuildMetricsQuery(services []domain.Service, metrics map[string]string, tr TimeRange) (string, map[string]MetricAlias, error) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	aliases := make(map[string]MetricAlias, len(services)*len(names))
	queries := make([]string, 0, len(services)*len(names))
	for _, svc := range services {
		entity := Object{
			{Key: "serviceName", Value: svc.Name},
			{Key: "normal", Value: svc.Normal},
		}
		for _, name := range names {
			alias := uniqueAlias(MetricAliasName(svc, name), aliases)
			q, err := b.Build(queryServiceMetric, map[string]any{
				"Alias":      alias,
				"Expression": metrics[name],
				"Entity":     entity,
				"Duration":   tr.Literal(),
			})
			if err != nil {
				return "", nil, err
			}
			aliases[alias] = MetricAlias{Service: svc.ShortName, Metric: name}
			queries = append(queries, strings.TrimRight(q, "\n"))
		}
	}
	doc := "query queryMetrics {\n" + strings.Join(queries, "\n") + "\n}\n"
	return doc, aliases, nil
}
