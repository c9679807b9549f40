package utils

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownManager runs registered cleanup tasks in reverse registration
// order once the process is asked to stop. Each task gets its own timeout,
// so a slow task cannot starve the ones after it.
type ShutdownManager struct {
	cancelFunc context.CancelFunc
	timeout    time.Duration
	tasks      []namedTask
	mu         sync.Mutex
	once       sync.Once
	done       chan struct{}
}

type namedTask struct {
	name string
	run  func(context.Context) error
}

func NewShutdownManager(ctx context.Context, timeout time.Duration) (context.Context, *ShutdownManager) {
	ctx, cancel := context.WithCancel(ctx)
	return ctx, &ShutdownManager{cancelFunc: cancel, timeout: timeout, done: make(chan struct{})}
}

func (sm *ShutdownManager) Register(name string, task func(context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.tasks = append(sm.tasks, namedTask{name: name, run: task})
}

// StartListening triggers Shutdown on SIGINT or SIGTERM.
func (sm *ShutdownManager) StartListening() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("[SHUTDOWN] Received signal: %v", sig)
		sm.Shutdown()
	}()
}

// Shutdown cancels the root context and runs every task. Later calls wait
// for the first one to finish.
func (sm *ShutdownManager) Shutdown() {
	sm.once.Do(func() {
		defer close(sm.done)
		sm.cancelFunc()

		sm.mu.Lock()
		tasks := append([]namedTask(nil), sm.tasks...)
		sm.mu.Unlock()

		for i := len(tasks) - 1; i >= 0; i-- {
			sm.runTask(tasks[i])
		}
		log.Println("[SHUTDOWN] Graceful shutdown complete")
	})
	<-sm.done
}

// Done is closed once every task has run.
func (sm *ShutdownManager) Done() <-chan struct{} { return sm.done }

func (sm *ShutdownManager) runTask(task namedTask) {
	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()
	if err := task.run(ctx); err != nil {
		log.Printf("[SHUTDOWN] Error stopping %s: %v", task.name, err)
	}
}
