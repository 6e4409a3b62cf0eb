package transfer

import "io"

// Accumulator collects everything one transfer produces: response body
// chunks and raw header lines in arrival order, and a terminal outcome.
// The outcome is exactly one of a status code or a failure, set when the
// engine drains the transfer's completion event.
//
// The transfer worker is the only writer until completion; the engine
// mutex orders completion against claiming, so a claimed accumulator can
// be read without further locking.
type Accumulator struct {
	sink   io.Writer
	chunks [][]byte
	lines  []string
	status int
	err    error
}

func newAccumulator(sink io.Writer) *Accumulator {
	return &Accumulator{sink: sink}
}

// bodyWriter returns the writer the worker streams the response body
// through. Chunks are buffered in arrival order, or forwarded to the
// caller's sink when one is set.
func (a *Accumulator) bodyWriter() io.Writer {
	return accWriter{a}
}

type accWriter struct {
	a *Accumulator
}

func (w accWriter) Write(p []byte) (int, error) {
	if w.a.sink != nil {
		return w.a.sink.Write(p)
	}
	c := make([]byte, len(p))
	copy(c, p)
	w.a.chunks = append(w.a.chunks, c)
	return len(p), nil
}

func (a *Accumulator) appendHeaderLine(line string) {
	a.lines = append(a.lines, line)
}

func (a *Accumulator) finish(status int) {
	if a.terminal() {
		panic("transfer: accumulator completed twice")
	}
	a.status = status
}

func (a *Accumulator) fail(err error) {
	if a.terminal() {
		panic("transfer: accumulator completed twice")
	}
	a.err = err
}

func (a *Accumulator) terminal() bool {
	return a.status != 0 || a.err != nil
}

// Status returns the response status code, or 0 when the transfer failed.
func (a *Accumulator) Status() int {
	return a.status
}

// Failure returns the transport error, or nil when the transfer succeeded.
func (a *Accumulator) Failure() error {
	return a.err
}

// HeaderLines returns the raw response header lines in arrival order,
// status line included. The slice is owned by the accumulator.
func (a *Accumulator) HeaderLines() []string {
	return a.lines
}

// Body returns the accumulated response body, chunks concatenated in
// arrival order. Transfers streamed to a sink accumulate nothing.
func (a *Accumulator) Body() []byte {
	n := 0
	for _, c := range a.chunks {
		n += len(c)
	}
	out := make([]byte, 0, n)
	for _, c := range a.chunks {
		out = append(out, c...)
	}
	return out
}
