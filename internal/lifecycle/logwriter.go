package lifecycle

import (
	"bytes"
	"sync"

	"github.com/BHPAV/dev-container-launcher/internal/logging"
)

// logWriter turns a byte stream into one debug log record per line.
type logWriter struct {
	msg   string
	attrs []any

	mu  sync.Mutex
	buf bytes.Buffer
}

func newLogWriter(msg string, attrs ...any) *logWriter {
	return &logWriter{msg: msg, attrs: attrs}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Partial line; keep it for the next write.
			w.buf.Reset()
			w.buf.Write(line)
			break
		}
		w.emit(line)
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (w *logWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.Bytes())
		w.buf.Reset()
	}
}

func (w *logWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return
	}
	logging.Debug(w.msg, append(w.attrs, "line", string(line))...)
}
