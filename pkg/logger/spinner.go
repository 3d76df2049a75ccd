package logger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	spinnerColor = color.New(color.FgCyan)
	barColor     = color.New(color.FgGreen)
)

// spinnerFrames are the braille animation frames
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner represents an animated spinner for long-running operations
type Spinner struct {
	mu       sync.Mutex
	active   bool
	message  string
	frames   []string
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewSpinner creates a new spinner with the default frames
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message:  message,
		frames:   spinnerFrames,
		interval: 100 * time.Millisecond,
	}
}

// Start starts the spinner animation
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run()
}

func (s *Spinner) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		s.mu.Lock()
		msg := s.message
		s.mu.Unlock()

		w, o := console()
		fmt.Fprintf(w, "\r%s %s", o.paint(spinnerColor, s.frames[i%len(s.frames)]), msg)

		select {
		case <-s.stop:
			fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", len(msg)+4))
			return
		case <-ticker.C:
		}
	}
}

// Stop stops the spinner and waits for the line to be cleared
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
}

// UpdateMessage updates the spinner message. It is safe to call from any
// goroutine and on a nil spinner.
func (s *Spinner) UpdateMessage(message string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// WithSpinner runs fn with a spinner and reports the outcome. fn may
// update the spinner message while it runs.
func WithSpinner(message string, fn func(s *Spinner) error) error {
	spinner := NewSpinner(message)
	spinner.Start()

	err := fn(spinner)
	spinner.Stop()

	if err != nil {
		Errorf("%s failed: %v", message, err)
	} else {
		Successf("%s completed", message)
	}
	return err
}

// ProgressBar represents a simple progress bar
type ProgressBar struct {
	total   int
	current int
	width   int
	message string
}

// NewProgressBar creates a new progress bar
func NewProgressBar(total int, message string) *ProgressBar {
	return &ProgressBar{
		total:   total,
		width:   40,
		message: message,
	}
}

// Update sets the progress to current
func (p *ProgressBar) Update(current int) {
	p.current = current
	p.draw()
}

// Increment advances the progress bar by 1
func (p *ProgressBar) Increment() {
	p.current++
	p.draw()
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() {
	p.current = p.total
	p.draw()
	w, _ := console()
	fmt.Fprintln(w)
}

// Percent returns the completed fraction in [0, 1].
func (p *ProgressBar) Percent() float64 {
	if p.total <= 0 {
		return 1
	}
	return min(1, max(0, float64(p.current)/float64(p.total)))
}

func (p *ProgressBar) draw() {
	percent := p.Percent()
	filled := int(percent * float64(p.width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)

	w, o := console()
	fmt.Fprintf(w, "\r%s: %s %3.0f%%", p.message, o.paint(barColor, bar), percent*100)
}
