package serialmux

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

var errPortClosed = errors.New("serial port closed")

// MockSerialPort implements SerialPorter over an in-process pipe. Writes are
// captured so dev mode can show what would have gone to the device.
type MockSerialPort struct {
	io.Reader
	pw *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errPortClosed
	}
	return m.written.Write(p)
}

// Written returns everything written to the port so far.
func (m *MockSerialPort) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.String()
}

func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.pw.Close()
}

// NewMockSerialMux creates a SerialMux backed by a mock port that receives
// next() followed by a newline every interval until the mux is closed.
func NewMockSerialMux(next func() string, interval time.Duration) *SerialMux[*MockSerialPort] {
	r, w := io.Pipe()
	mockPort := &MockSerialPort{Reader: r, pw: w}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if _, err := io.WriteString(w, next()+"\n"); err != nil {
				return // pipe closed
			}
		}
	}()

	return NewSerialMux(mockPort)
}

// TestableSerialPort implements SerialPorter with configurable behaviour for
// testing: queued read data, captured writes and injected errors.
type TestableSerialPort struct {
	mu sync.Mutex

	readBuf  bytes.Buffer
	writeBuf bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error
	// WriteError is returned by the next Write call if set
	WriteError error
	// CloseError is returned by Close if set
	CloseError error
	// ShortWrite makes Write report one byte fewer than it was given
	ShortWrite bool

	closed   bool
	readCond *sync.Cond
}

// NewTestableSerialPort creates a new TestableSerialPort. Reads block until
// data is queued with AddReadData or the port is closed.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

// Read returns queued data, blocking while none is available.
func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for !t.closed && t.ReadError == nil && t.readBuf.Len() == 0 {
		t.readCond.Wait()
	}
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	if t.readBuf.Len() == 0 {
		return 0, io.EOF
	}
	return t.readBuf.Read(p)
}

// Write captures p, optionally failing or short-writing.
func (t *TestableSerialPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, errPortClosed
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	n, err := t.writeBuf.Write(p)
	if t.ShortWrite && n > 0 {
		n--
	}
	return n, err
}

// Close marks the port closed and wakes blocked readers. Data still queued is
// drained by subsequent reads before they report io.EOF.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.readCond.Broadcast()
	return t.CloseError
}

// AddReadData queues data for subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readBuf.Write(data)
	t.readCond.Broadcast()
}

// FailNextRead makes the next Read return err.
func (t *TestableSerialPort) FailNextRead(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadError = err
	t.readCond.Broadcast()
}

// Written returns all data written to the port.
func (t *TestableSerialPort) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writeBuf.String()
}

// Closed reports whether Close has been called.
func (t *TestableSerialPort) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// MockSerialPortFactory implements SerialPortFactory for testing.
type MockSerialPortFactory struct {
	mu sync.Mutex

	// Port is the port to return from Open
	Port SerialPorter
	// Error is returned by Open if set
	Error error
	// OpenCalls records all Open calls
	OpenCalls []MockOpenCall
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Path string
	Opts PortOptions
}

// NewMockSerialPortFactory creates a new MockSerialPortFactory.
func NewMockSerialPortFactory(port SerialPorter) *MockSerialPortFactory {
	return &MockSerialPortFactory{Port: port}
}

// Open returns the configured port or error.
func (f *MockSerialPortFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OpenCalls = append(f.OpenCalls, MockOpenCall{Path: path, Opts: opts})
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Port, nil
}

var _ SerialPortFactory = (*MockSerialPortFactory)(nil)
