package runner

import (
	"bytes"
	"sync"

	"clipper/internal/logging"
)

const maxLineLength = 4096

// lineSink splits subprocess output on \n and \r, forwards each line, and keeps
// a bounded tail of redacted lines. It is shared by stdout and stderr.
type lineSink struct {
	mu      sync.Mutex
	onLine  func(string)
	secrets []string
	limit   int
	tail    []string
}

func newLineSink(onLine func(string), secrets []string, limit int) *lineSink {
	if limit <= 0 {
		limit = defaultTailLines
	}
	return &lineSink{onLine: onLine, secrets: secrets, limit: limit}
}

func (s *lineSink) writer() *lineWriter {
	return &lineWriter{sink: s}
}

func (s *lineSink) emit(line string) {
	if line == "" {
		return
	}
	s.mu.Lock()
	s.tail = append(s.tail, logging.RedactLine(line, s.secrets...))
	if len(s.tail) > s.limit {
		s.tail = s.tail[len(s.tail)-s.limit:]
	}
	onLine := s.onLine
	s.mu.Unlock()
	if onLine != nil {
		onLine(line)
	}
}

func (s *lineSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(s.tail))
	copy(cp, s.tail)
	return cp
}

// lineWriter buffers a partial line per stream.
type lineWriter struct {
	sink *lineSink
	buf  []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		idx := bytes.IndexAny(p, "\r\n")
		if idx < 0 {
			w.buf = append(w.buf, p...)
			if len(w.buf) > maxLineLength {
				w.flush()
			}
			break
		}
		w.buf = append(w.buf, p[:idx]...)
		w.flush()
		p = p[idx+1:]
	}
	return n, nil
}

func (w *lineWriter) flush() {
	if len(w.buf) == 0 {
		return
	}
	w.sink.emit(string(w.buf))
	w.buf = w.buf[:0]
}

// capBuffer keeps at most max bytes of stdout.
type capBuffer struct {
	buf bytes.Buffer
	max int
}

func (c *capBuffer) Write(p []byte) (int, error) {
	if room := c.max - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}
	return len(p), nil
}
