package worker

import (
	"bytes"
	"fmt"
	"sync"
)

// LineSink receives build log lines as they are produced. Implementations
// must not block; a sink that cannot keep up drops lines.
type LineSink interface {
	WriteLine(line []byte)
}

// BuildLog accumulates the full transcript of one job and tees every line to
// the live log relay. The accumulated transcript is what gets uploaded to
// the log sink when the job finishes; the relay stream is just a live tail.
type BuildLog struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	sink LineSink
}

// NewBuildLog returns a build log that tees lines to sink. A nil sink is
// allowed; the transcript is still accumulated.
func NewBuildLog(sink LineSink) *BuildLog {
	return &BuildLog{sink: sink}
}

// Line appends one line to the transcript.
func (l *BuildLog) Line(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeLine([]byte(line))
}

// Linef appends one formatted line to the transcript.
func (l *BuildLog) Linef(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeLine([]byte(fmt.Sprintf(format, args...)))
}

// Output appends raw subprocess output to the transcript, streaming it to
// the sink line by line.
func (l *BuildLog) Output(output []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(output) > 0 {
		idx := bytes.IndexByte(output, '\n')
		if idx < 0 {
			l.writeLine(output)
			break
		}
		l.writeLine(output[:idx])
		output = output[idx+1:]
	}
}

// Bytes returns a copy of the transcript so far.
func (l *BuildLog) Bytes() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]byte, l.buf.Len())
	copy(out, l.buf.Bytes())
	return out
}

func (l *BuildLog) writeLine(line []byte) {
	l.buf.Write(line)
	l.buf.WriteByte('\n')
	if l.sink != nil {
		l.sink.WriteLine(line)
	}
}
