// Package agent answers questions about the monitored system by letting a language model pick one
// of a fixed set of commands and running it against SkyWalking.
package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/abstracta/skywalking-copilot/internal/agent/domain"
)

// CommandKind is the closed set of commands the model can request.
type CommandKind int

const (
	CommandServicesMetrics CommandKind = iota + 1
	CommandServicesTopology
	CommandMetricChart
)

var commandKinds = []CommandKind{CommandServicesMetrics, CommandServicesTopology, CommandMetricChart}

// String returns the tool name the model uses for the command.
func (k CommandKind) String() string {
	switch k {
	case CommandServicesMetrics:
		return "get_services_metrics"
	case CommandServicesTopology:
		return "get_services_topology"
	case CommandMetricChart:
		return "get_metric_chart"
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// ParseCommandKind returns the command with the given tool name.
func ParseCommandKind(name string) (CommandKind, bool) {
	for _, k := range commandKinds {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

// MetricChartArgs are the arguments of CommandMetricChart.
type MetricChartArgs struct {
	Service string `json:"service"`
	Metric  string `json:"metric"`
}

// Command is a parsed tool call. MetricChart is only set for CommandMetricChart.
type Command struct {
	Kind        CommandKind
	MetricChart MetricChartArgs
}

// ErrUnknownCommand is returned by ParseCommand for tool names outside the command set.
var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand validates a tool call requested by the model.
func ParseCommand(call domain.ToolCall) (Command, error) {
	kind, ok := ParseCommandKind(call.Name)
	if !ok {
		return Command{}, fmt.Errorf("%w %q", ErrUnknownCommand, call.Name)
	}
	cmd := Command{Kind: kind}
	if kind == CommandMetricChart {
		args := strings.TrimSpace(call.Arguments)
		if args == "" {
			args = "{}"
		}
		if err := json.Unmarshal([]byte(args), &cmd.MetricChart); err != nil {
			return Command{}, fmt.Errorf("invalid arguments for %s: %w", kind, err)
		}
	}
	return cmd, nil
}

// ChartMetric is a metric that can be charted for a single service.
type ChartMetric struct {
	ID         string
	Title      string
	Expression string
}

// ChartMetrics is the catalog of chartable metrics, keyed by id.
var ChartMetrics = map[string]ChartMetric{
	"cpm":        {ID: "cpm", Title: "Load (calls/min)", Expression: "service_cpm"},
	"sla":        {ID: "sla", Title: "Success rate (%)", Expression: "service_sla/100"},
	"resp_time":  {ID: "resp_time", Title: "Average response time (ms)", Expression: "service_resp_time"},
	"apdex":      {ID: "apdex", Title: "Apdex", Expression: "service_apdex/10000"},
	"percentile": {ID: "percentile", Title: "Response time percentiles (ms)", Expression: "service_percentile{p='50,75,90,95,99'}"},
}

// ChartMetricIDs returns the catalog ids in sorted order.
func ChartMetricIDs() []string {
	ids := make([]string, 0, len(ChartMetrics))
	for id := range ChartMetrics {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Tools describes every command to the model. window is the period the commands look back over.
func Tools(window time.Duration) []domain.ToolSpec {
	period := fmt.Sprintf("in the last %d minutes", int(window.Minutes()))
	noArgs := json.RawMessage(`{"type":"object","properties":{}}`)
	chartArgs := json.RawMessage(`{
		"type": "object",
		"properties": {
			"service": {"type": "string", "description": "name, or part of the name, of the service"},
			"metric": {"type": "string", "enum": ["apdex", "cpm", "percentile", "resp_time", "sla"], "description": "metric to chart"}
		},
		"required": ["service", "metric"]
	}`)
	return []domain.ToolSpec{
		{
			Name:        CommandServicesMetrics.String(),
			Description: "gets the metrics of all services " + period,
			Parameters:  noArgs,
		},
		{
			Name: CommandServicesTopology.String(),
			Description: "gets a diagram with the topology of services showing how are they connected. " +
				"This information is based on the calls made between services " + period,
			Parameters: noArgs,
		},
		{
			Name:        CommandMetricChart.String(),
			Description: "gets a chart of one metric of one service " + period,
			Parameters:  chartArgs,
		},
	}
}
