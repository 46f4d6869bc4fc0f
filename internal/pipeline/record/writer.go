package record

import (
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultBufferSize is the ring buffer capacity in lines.
	DefaultBufferSize = 256

	// DefaultFlushInterval is the background flush cadence.
	DefaultFlushInterval = 100 * time.Millisecond

	// flushThresholdPercent triggers an immediate flush when the buffer
	// crosses this fill level.
	flushThresholdPercent = 75
)

// lineWriter batches line writes to a file behind a ring buffer so the
// snapshot fan-out never blocks on disk I/O. Write errors are tracked via
// atomic counters instead of propagating into the dispatch path.
type lineWriter struct {
	file *os.File

	mu             sync.Mutex
	buffer         [][]byte
	bufferSize     int
	flushThreshold int
	closed         bool

	flushInterval time.Duration
	writeErrors   atomic.Int64
	lastError     atomic.Value

	done chan struct{}
	wg   sync.WaitGroup
}

func newLineWriter(file *os.File, bufferSize int, flushInterval time.Duration) *lineWriter {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}

	w := &lineWriter{
		file:           file,
		buffer:         make([][]byte, 0, bufferSize),
		bufferSize:     bufferSize,
		flushThreshold: (bufferSize * flushThresholdPercent) / 100,
		flushInterval:  flushInterval,
		done:           make(chan struct{}),
	}

	w.wg.Add(1)
	go w.flushLoop()

	return w
}

// Write buffers one line. The slice is copied; callers may reuse it.
func (w *lineWriter) Write(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return os.ErrClosed
	}

	buf := make([]byte, len(line))
	copy(buf, line)
	w.buffer = append(w.buffer, buf)

	if len(w.buffer) >= w.flushThreshold {
		return w.flushLocked()
	}
	return nil
}

// Flush drains the buffer to disk.
func (w *lineWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return os.ErrClosed
	}
	return w.flushLocked()
}

func (w *lineWriter) flushLocked() error {
	if len(w.buffer) == 0 {
		return nil
	}

	var writeErr error
	for _, line := range w.buffer {
		if _, err := w.file.Write(line); err != nil {
			// Keep draining; later lines may still land.
			writeErr = err
			w.writeErrors.Add(1)
			w.lastError.Store(err)
		}
	}
	w.buffer = w.buffer[:0]
	return writeErr
}

func (w *lineWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			_ = w.Flush()
		}
	}
}

// Close stops the flush loop, drains the buffer and closes the file.
func (w *lineWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return os.ErrClosed
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()

	w.mu.Lock()
	flushErr := w.flushLocked()
	w.mu.Unlock()

	closeErr := w.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// ErrorCount reports accumulated write failures.
func (w *lineWriter) ErrorCount() int64 {
	return w.writeErrors.Load()
}

// LastError returns the most recent write failure, nil when clean.
func (w *lineWriter) LastError() error {
	if err := w.lastError.Load(); err != nil {
		return err.(error)
	}
	return nil
}

// Len reports the number of buffered lines.
func (w *lineWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}
