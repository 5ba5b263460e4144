package skywalking

import (
	"github.com/abstracta/skywalking-copilot/internal/skywalking/domain"
)

type spanKey struct {
	segment string
	span    int
}

// BuildSpanTree links the flat spans of a trace query into call trees and returns the roots.
// Within a segment a span's parent is (segment, ParentSpanID). The first span of a segment
// (ParentSpanID < 0) is attached to the span referenced by the segment's first ref; that lookup is
// resolved once per segment. Spans whose parent is not in spans, or whose link would close a cycle,
// become roots. Roots and children keep encounter order. Input spans are not modified.
func BuildSpanTree(spans []*domain.TraceSpan) []*domain.TraceSpan {
	nodes := make([]*domain.TraceSpan, 0, len(spans))
	index := make(map[spanKey]*domain.TraceSpan, len(spans))
	for _, s := range spans {
		if s == nil {
			continue
		}
		c := *s
		c.Children = nil
		k := spanKey{segment: c.SegmentID, span: c.SpanID}
		if _, dup := index[k]; dup {
			continue
		}
		index[k] = &c
		nodes = append(nodes, &c)
	}

	segmentParents := make(map[string]*spanKey)
	resolve := func(s *domain.TraceSpan) *domain.TraceSpan {
		if s.ParentSpanID >= 0 {
			return index[spanKey{segment: s.SegmentID, span: s.ParentSpanID}]
		}
		k, seen := segmentParents[s.SegmentID]
		if !seen {
			if len(s.Refs) > 0 {
				ref := s.Refs[0]
				k = &spanKey{segment: ref.ParentSegmentID, span: ref.ParentSpanID}
			}
			segmentParents[s.SegmentID] = k
		}
		if k == nil {
			return nil
		}
		return index[*k]
	}

	parents := make(map[*domain.TraceSpan]*domain.TraceSpan, len(nodes))
	var roots []*domain.TraceSpan
	for _, s := range nodes {
		p := resolve(s)
		if p == nil || p == s || isAncestor(parents, s, p) {
			roots = append(roots, s)
			continue
		}
		parents[s] = p
		p.Children = append(p.Children, s)
	}
	return roots
}

// isAncestor reports whether candidate is node or one of node's linked ancestors.
func isAncestor(parents map[*domain.TraceSpan]*domain.TraceSpan, candidate, node *domain.TraceSpan) bool {
	for n := node; n != nil; n = parents[n] {
		if n == candidate {
			return true
		}
	}
	return false
}

// SimplifySpans rebuilds the trees replacing every Local and Entry span by its simplified children,
// so only remote hops (Exit spans) remain. Sibling order is preserved and the input is not modified.
func SimplifySpans(spans []*domain.TraceSpan) []*domain.TraceSpan {
	var out []*domain.TraceSpan
	for _, s := range spans {
		children := SimplifySpans(s.Children)
		if s.Type == domain.SpanTypeLocal || s.Type == domain.SpanTypeEntry {
			out = append(out, children...)
			continue
		}
		c := *s
		c.Children = children
		out = append(out, &c)
	}
	return out
}

// FlattenSpans renders the trees depth first as rows with tree-drawing prefixes.
func FlattenSpans(spans []*domain.TraceSpan) []domain.SpanRow {
	return flattenSpans(spans, "", nil)
}

func flattenSpans(spans []*domain.TraceSpan, prefix string, rows []domain.SpanRow) []domain.SpanRow {
	for i, s := range spans {
		last := i == len(spans)-1
		branch, continuation := "├─ ", "│   "
		if last {
			branch, continuation = "└─ ", "    "
		}
		rows = append(rows, domain.SpanRow{
			Prefix:   prefix + branch,
			Name:     SpanName(s),
			Duration: s.Duration(),
		})
		rows = flattenSpans(s.Children, prefix+continuation, rows)
	}
	return rows
}

// SpanName returns a human label for the span based on its layer.
func SpanName(s *domain.TraceSpan) string {
	switch s.Layer {
	case domain.LayerHTTP:
		method := firstNonEmpty(s.Tags["http.method"], "GET")
		return method + " " + firstNonEmpty(s.Tags["url"], s.Tags["http.url"], s.Endpoint)
	case domain.LayerDatabase:
		return "@" + s.Peer + " " + firstNonEmpty(s.Tags["db.statement"], s.Endpoint)
	case domain.LayerMQ:
		return "@" + s.Peer + " " + s.Endpoint
	}
	return s.Endpoint
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
