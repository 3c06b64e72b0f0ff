package sham

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// traceFormatter renders one line per event: a millisecond timestamp
// followed by the message, matching the structural trace format §6
// requires so harnesses keyed on the event strings keep working. Modeled
// on the teacher's client.LogFormatter (pkg/client/log.go).
type traceFormatter struct{}

func (traceFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := &bytes.Buffer{}
	b.WriteString(entry.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Trace is the §6 verbose protocol trace: a per-role, structurally stable
// log of the observable protocol events (SND SYN, RCV DATA SEQ=…, …).
// It is independent of the operational dlog/logrus logging a Connection
// does through its context.Context.
type Trace struct {
	logger *logrus.Logger
	file   *os.File
}

// OpenTrace opens (creating if necessary) "<role>_log.txt" and returns a
// Trace that writes to it, or nil if verbose logging is disabled. role is
// typically "client" or "server".
func OpenTrace(role string, enabled bool) (*Trace, error) {
	if !enabled {
		return nil, nil
	}
	f, err := os.OpenFile(role+"_log.txt", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(f)
	logger.SetFormatter(traceFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	return &Trace{logger: logger, file: f}, nil
}

// Event records one trace line. A nil *Trace is a valid no-op receiver so
// call sites never need a nil check.
func (t *Trace) Event(format string, args ...interface{}) {
	if t == nil {
		return
	}
	t.logger.Infof(format, args...)
}

// Close releases the underlying file. A nil *Trace is a valid no-op
// receiver.
func (t *Trace) Close() error {
	if t == nil {
		return nil
	}
	return t.file.Close()
}
