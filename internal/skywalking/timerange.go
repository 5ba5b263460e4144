package skywalking

import "time"

// Step is the resolution of a Duration.
type Step string

// StepMinute is the only resolution used by the copilot.
const StepMinute Step = "MINUTE"

// EnumValue implements Enum.
func (s Step) EnumValue() string { return string(s) }

// timeLayout is the minute-granularity format SkyWalking expects for MINUTE durations.
const timeLayout = "2006-01-02 1504"

// TimeRange is the time window of a query.
type TimeRange struct {
	Start time.Time
	End   time.Time
	Step  Step
}

// LastMinutes returns the window ending now (UTC) and spanning the given minutes.
func LastMinutes(minutes int) TimeRange {
	return LastDuration(time.Duration(minutes) * time.Minute)
}

// LastDuration returns the window ending now (UTC) and spanning d, with minute resolution.
func LastDuration(d time.Duration) TimeRange {
	now := time.Now().UTC()
	return TimeRange{Start: now.Add(-d), End: now, Step: StepMinute}
}

// Literal returns the GraphQL Duration input object for the range.
func (r TimeRange) Literal() Object {
	step := r.Step
	if step == "" {
		step = StepMinute
	}
	return Object{
		{Key: "start", Value: r.Start.Format(timeLayout)},
		{Key: "end", Value: r.End.Format(timeLayout)},
		{Key: "step", Value: step},
	}
}

// String renders the range as a GraphQL literal.
func (r TimeRange) String() string {
	return EncodeLiteral(r.Literal())
}
