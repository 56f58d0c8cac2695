// Package metrics records one telemetry row per pipeline step and flushes
// the rows of a run to durable sinks when the run ends.
package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Header is the fixed column order of the tabular report.
var Header = []string{
	"Datetime_request",
	"Input_prompt",
	"Total_time_request",
	"Step",
	"Tool",
	"Success",
	"Latency",
	"Confidence",
	"Tokens",
	"Calls_API",
	"Response",
}

// Step names that are not router labels.
const (
	StepRouting     = "routing"
	StepSynthesized = "synthesized_result"
)

// timeLayout matches the timestamps already present in existing reports.
const timeLayout = "2006-01-02 15:04:05.000000"

// Row is one pipeline step.
type Row struct {
	RunID       string
	RequestTime time.Time
	InputPrompt string
	TotalTime   time.Duration
	Step        string
	Tool        string
	Success     bool
	Latency     time.Duration
	Confidence  float64
	Tokens      int
	CallsAPI    int
	Response    string
}

// Record renders the row in Header order. Durations are seconds.
func (r Row) Record() []string {
	return []string{
		r.RequestTime.UTC().Format(timeLayout),
		r.InputPrompt,
		formatSeconds(r.TotalTime),
		r.Step,
		r.Tool,
		formatBool(r.Success),
		formatSeconds(r.Latency),
		strconv.FormatFloat(r.Confidence, 'f', -1, 64),
		strconv.Itoa(r.Tokens),
		strconv.Itoa(r.CallsAPI),
		r.Response,
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Sink persists flushed rows.
type Sink interface {
	Append(ctx context.Context, rows []Row) error
}

// MultiSink appends to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, rows []Row) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, rows); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder accumulates the rows of one run. It is not safe for
// concurrent use; each run owns its own Recorder.
type Recorder struct {
	sink        Sink
	runID       string
	requestTime time.Time
	input       string
	rows        []Row
}

// NewRecorder starts a run that received input at requestTime.
func NewRecorder(sink Sink, input string, requestTime time.Time) *Recorder {
	runID := uuid.NewString()
	if id, err := uuid.NewV7(); err == nil {
		runID = id.String()
	}
	return &Recorder{
		sink:        sink,
		runID:       runID,
		requestTime: requestTime,
		input:       input,
	}
}

// RunID identifies the run in every row.
func (r *Recorder) RunID() string { return r.runID }

// Add records a step. Run identity, request time and input are filled in.
func (r *Recorder) Add(row Row) {
	row.RunID = r.runID
	row.RequestTime = r.requestTime
	row.InputPrompt = r.input
	r.rows = append(r.rows, row)
}

// Rows returns the rows recorded so far.
func (r *Recorder) Rows() []Row {
	return append([]Row(nil), r.rows...)
}

// Flush stamps every row with the run's total elapsed time and appends
// them to the sink. The recorder is empty afterwards.
func (r *Recorder) Flush(ctx context.Context, total time.Duration) error {
	if len(r.rows) == 0 {
		return nil
	}
	for i := range r.rows {
		r.rows[i].TotalTime = total
	}
	rows := r.rows
	r.rows = nil
	if r.sink == nil {
		return nil
	}
	return r.sink.Append(ctx, rows)
}
