package queue

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
)

var (
	installOnce sync.Once
	interrupted atomic.Bool
)

// HandleInterrupts installs the interrupt handler. The first signal marks
// the pipeline interrupted so it stops between commands; a second signal
// exits immediately. Safe to call more than once.
func HandleInterrupts() {
	installOnce.Do(func() {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, os.Interrupt)
		go func() {
			<-ch
			interrupted.Store(true)
			<-ch
			os.Exit(1)
		}()
	})
}

// Interrupted reports whether an interrupt arrived since HandleInterrupts.
func Interrupted() bool {
	return interrupted.Load()
}
