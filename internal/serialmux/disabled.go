package serialmux

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/vitals.link/internal/httputil"
)

// DisabledSerialMux stands in for the transmitter link under -disable-serial.
// No lines are ever published. Commands are dropped and counted so the
// operator can see what would have gone out, and subscriber channels close on
// Unsubscribe or Close so readers unblock during shutdown.
type DisabledSerialMux struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
	dropped     int
	lastCommand string
}

// DisabledStatus is served at /debug/serial-disabled.
type DisabledStatus struct {
	Subscribers     int    `json:"subscribers"`
	DroppedCommands int    `json:"dropped_commands"`
	LastCommand     string `json:"last_command,omitempty"`
	Closed          bool   `json:"closed"`
}

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{
		subscribers: make(map[string]chan string),
	}
}

func (d *DisabledSerialMux) Subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

func (d *DisabledSerialMux) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

// SendCommand drops command. The first drop is logged.
func (d *DisabledSerialMux) SendCommand(command string) error {
	command = strings.TrimSpace(command)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dropped == 0 {
		logf("serial disabled, dropping command %q", command)
	}
	d.dropped++
	d.lastCommand = command
	return nil
}

func (d *DisabledSerialMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledSerialMux) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	return nil
}

func (d *DisabledSerialMux) Initialise() error {
	logf("serial disabled, no transmitter lines will be received")
	return nil
}

// Status reports subscriber and dropped-command counts.
func (d *DisabledSerialMux) Status() DisabledStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DisabledStatus{
		Subscribers:     len(d.subscribers),
		DroppedCommands: d.dropped,
		LastCommand:     d.lastCommand,
		Closed:          d.closing,
	}
}

func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/serial-disabled", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, d.Status())
	})
}
