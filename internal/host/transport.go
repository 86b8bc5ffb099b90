package host

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/go-dap"
)

// Transport provides DAP message I/O over a connection to a debug adapter.
// Implementations are safe for concurrent use by one reader and one writer,
// but individual reads (or writes) may not be concurrent with each other.
type Transport interface {
	// ReadMessage reads the next DAP protocol message from the transport.
	// It blocks until a complete message is available.
	ReadMessage() (dap.Message, error)

	// WriteMessage writes a DAP protocol message to the transport.
	WriteMessage(msg dap.Message) error

	// Close closes the transport, releasing any associated resources.
	// Blocked ReadMessage or WriteMessage calls return with an error afterwards.
	Close() error
}

type streamTransport struct {
	reader  *bufio.Reader
	writer  *bufio.Writer
	closers []io.Closer

	// writeMu protects concurrent writes
	writeMu sync.Mutex

	closed bool
	mu     sync.Mutex
}

// NewStdioTransport creates a Transport over the stdout/stdin pipes of an
// adapter process.
func NewStdioTransport(stdout io.ReadCloser, stdin io.WriteCloser) Transport {
	return &streamTransport{
		reader:  bufio.NewReader(stdout),
		writer:  bufio.NewWriter(stdin),
		closers: []io.Closer{stdout, stdin},
	}
}

// NewTCPTransport creates a Transport backed by an established TCP connection.
func NewTCPTransport(conn net.Conn) Transport {
	return &streamTransport{
		reader:  bufio.NewReader(conn),
		writer:  bufio.NewWriter(conn),
		closers: []io.Closer{conn},
	}
}

func (t *streamTransport) ReadMessage() (dap.Message, error) {
	if t.isClosed() {
		return nil, fmt.Errorf("transport is closed")
	}

	msg, readErr := dap.ReadProtocolMessage(t.reader)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read DAP message: %w", readErr)
	}

	return msg, nil
}

func (t *streamTransport) WriteMessage(msg dap.Message) error {
	if t.isClosed() {
		return fmt.Errorf("transport is closed")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if writeErr := dap.WriteProtocolMessage(t.writer, msg); writeErr != nil {
		return fmt.Errorf("failed to write DAP message: %w", writeErr)
	}

	if flushErr := t.writer.Flush(); flushErr != nil {
		return fmt.Errorf("failed to flush DAP message: %w", flushErr)
	}

	return nil
}

func (t *streamTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	for _, c := range t.closers {
		if closeErr := c.Close(); closeErr != nil {
			errs = append(errs, closeErr)
		}
	}
	return joinErrors(errs)
}

func (t *streamTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return fmt.Errorf("%v (and %d more errors)", errs[0], len(errs)-1)
	}
}
