package log

import (
	"bufio"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// flushThreshold is the amount of buffered capture that forces a write.
const flushThreshold = 32 << 10

// FileLogger appends protocol events to a capture file. Continuous commands
// and frames are buffered; state changes and errors are flushed at once so
// a capture followed with pod-log is never far behind the device.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	encoder *cbor.Encoder
	dropped int
	closed  bool
}

// NewFileLogger opens path for appending, creating it with mode 0644.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriterSize(f, 2*flushThreshold)
	return &FileLogger{file: f, buf: buf, encoder: NewEncoder(buf)}, nil
}

// Log appends event. Encoding failures are counted, not returned.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	if err := l.encoder.Encode(event); err != nil {
		l.dropped++
		return
	}
	if event.StateChange != nil || event.Error != nil || l.buf.Buffered() >= flushThreshold {
		if err := l.buf.Flush(); err != nil {
			l.dropped++
		}
	}
}

// Dropped returns how many events could not be written.
func (l *FileLogger) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Flush writes the buffered events.
func (l *FileLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	return l.buf.Flush()
}

// Close flushes and closes the file. Later calls and Log are no-ops.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	ferr := l.buf.Flush()
	cerr := l.file.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}

var _ Logger = (*FileLogger)(nil)
