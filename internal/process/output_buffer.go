package process

import (
	"strings"
	"sync"
)

// outputBuffer accumulates child process output and hands it out in
// drain-and-clear fashion. Writes come from the copier goroutines owned by the
// process handle; Drain never blocks and returns the empty string when nothing
// has been buffered.
type outputBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func newOutputBuffer() *outputBuffer {
	return &outputBuffer{}
}

// Write implements io.Writer for exec.Cmd output wiring.
func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Drain returns everything buffered since the last drain and clears it.
func (b *outputBuffer) Drain() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.buf.String()
	b.buf.Reset()
	return out
}
