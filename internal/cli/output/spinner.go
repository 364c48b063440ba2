package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// Spinner animates a message until stopped.
type Spinner struct {
	w        io.Writer
	message  string
	interval time.Duration

	mu       sync.Mutex
	started  bool
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewSpinner creates a spinner. It does nothing until Start.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:        w,
		message:  message,
		interval: 100 * time.Millisecond,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// SetMessage changes the message shown on the next frame.
func (s *Spinner) SetMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = msg
}

// Start runs the animation in a goroutine.
func (s *Spinner) Start() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	go func() {
		defer close(s.stopped)
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for i := 0; ; i++ {
			s.mu.Lock()
			fmt.Fprintf(s.w, "\r%s %s", spinnerFrames[i%len(spinnerFrames)], s.message)
			s.mu.Unlock()
			select {
			case <-s.done:
				return
			case <-t.C:
			}
		}
	}()
}

// Stop ends the animation and prints result on the cleared line. An empty
// result just clears it. Only the first call has an effect.
func (s *Spinner) Stop(result string) {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.stopped
		}
		fmt.Fprint(s.w, "\r\033[K")
		if result != "" {
			fmt.Fprintln(s.w, result)
		}
	})
}
