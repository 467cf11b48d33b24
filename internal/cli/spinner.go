package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// renderSpinner animates one status line while a diagram is converted to a
// slow output format. It draws only when animate is set, which callers tie
// to the writer being a terminal.
type renderSpinner struct {
	w       io.Writer
	label   string
	animate bool

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// startRenderSpinner shows "Rendering <target> as <FORMAT>" on w until Stop
// is called or ctx ends.
func startRenderSpinner(ctx context.Context, w io.Writer, target, format string) *renderSpinner {
	label := fmt.Sprintf("Rendering %s as %s", target, strings.ToUpper(format))
	s := newRenderSpinner(w, label, isTerminal(w))
	s.start(ctx)
	return s
}

func newRenderSpinner(w io.Writer, label string, animate bool) *renderSpinner {
	return &renderSpinner{
		w:       w,
		label:   label,
		animate: animate,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (s *renderSpinner) start(ctx context.Context) {
	if !s.animate {
		close(s.stopped)
		return
	}
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for i := 0; ; i++ {
			s.draw(i)
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *renderSpinner) draw(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := spinnerFrames[i%len(spinnerFrames)]
	fmt.Fprintf(s.w, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.label))
}

// Stop ends the animation and clears the line. Safe to call more than once.
func (s *renderSpinner) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.stopped
	if !s.animate {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(s.label)+4))
}
