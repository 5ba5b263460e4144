package skywalking

import (
	"sort"
	"strconv"

	"github.com/abstracta/skywalking-copilot/internal/skywalking/domain"
)

// BuildChart aligns the series of a metric result on a shared x-axis: the union of the timestamp ids
// holding a value in any series, sorted ascending (numerically when every id is an integer).
// Points a series lacks are left nil; nothing is interpolated.
func BuildChart(ms domain.MetricSeries) domain.MetricChart {
	seen := make(map[string]struct{})
	var ids []string
	for _, s := range ms.Series {
		for _, v := range s.Values {
			if _, ok := v.Float(); !ok {
				continue
			}
			if _, dup := seen[v.ID]; dup {
				continue
			}
			seen[v.ID] = struct{}{}
			ids = append(ids, v.ID)
		}
	}
	sortTimestampIDs(ids)

	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	chart := domain.MetricChart{Service: ms.Service, Metric: ms.Metric, XAxis: ids}
	for _, s := range ms.Series {
		cs := domain.ChartSeries{Label: s.Label, Values: make([]*float64, len(ids))}
		for _, v := range s.Values {
			f, ok := v.Float()
			if !ok {
				continue
			}
			cs.Values[pos[v.ID]] = &f
		}
		chart.Series = append(chart.Series, cs)
	}
	return chart
}

func sortTimestampIDs(ids []string) {
	nums := make(map[string]int64, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			sort.Strings(ids)
			return
		}
		nums[id] = n
	}
	sort.Slice(ids, func(i, j int) bool { return nums[ids[i]] < nums[ids[j]] })
}
