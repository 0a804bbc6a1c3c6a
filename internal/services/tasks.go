package services

import (
	"log"
	"sync"
)

// Tasks runs best-effort work that outlives the request that started it.
// Wait blocks until every started task has finished.
type Tasks struct {
	wg sync.WaitGroup
}

// NewTasks creates a task tracker
func NewTasks() *Tasks {
	return &Tasks{}
}

// Go runs fn in the background. A panic in fn is logged, never propagated.
func (t *Tasks) Go(name string, fn func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[TASKS] %s panicked: %v", name, r)
			}
		}()
		fn()
	}()
}

// Wait blocks until all tasks are done
func (t *Tasks) Wait() {
	t.wg.Wait()
}
