package core

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sheetvault/sheetvault/internal/store"
)

// taskRetention is how long finished tasks stay queryable.
var taskRetention = 5 * time.Minute

// Options tunes the service's concurrency behavior. Zero values pick
// defaults.
type Options struct {
	ReadWorkers    int
	MaxImports     int
	ImportWaitTime time.Duration
	ImportTimeout  time.Duration
}

// Service owns the store handle, the dispatcher, and the task registry.
// Every operation that touches storage or parses input is executed on a
// dispatcher worker; callers either wait at the completion boundary
// (DispatchRead/DispatchWrite) or poll a task (StartImportCSV/XLSX).
type Service struct {
	store         *store.Store
	dispatcher    *Dispatcher
	limiter       *ImportLimiter
	events        *eventBus
	importTimeout time.Duration
	gen           atomic.Uint64

	mu    sync.RWMutex
	tasks map[uuid.UUID]*TaskInfo
}

// TaskStatus is the lifecycle state of an asynchronous task.
type TaskStatus string

const (
	TaskRunning  TaskStatus = "running"
	TaskComplete TaskStatus = "complete"
	TaskFailed   TaskStatus = "failed"
)

// TaskInfo is the pollable state of one asynchronous import.
type TaskInfo struct {
	Task      Task       `json:"task"`
	Status    TaskStatus `json:"status"`
	Datasets  []Dataset  `json:"datasets,omitempty"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"startedAt"`
	Duration  string     `json:"duration,omitempty"`
}

// NewService creates a Service on an opened store.
func NewService(st *store.Store, opts Options) *Service {
	importTimeout := opts.ImportTimeout
	if importTimeout <= 0 {
		importTimeout = ImportTimeout
	}
	return &Service{
		store:         st,
		dispatcher:    NewDispatcher(opts.ReadWorkers),
		limiter:       NewImportLimiter(opts.MaxImports, opts.ImportWaitTime),
		events:        newEventBus(),
		importTimeout: importTimeout,
		tasks:         make(map[uuid.UUID]*TaskInfo),
	}
}

// Close drains in-flight imports and stops the dispatcher. The store
// handle itself is closed by the caller that opened it.
func (s *Service) Close(ctx context.Context) error {
	if err := s.limiter.WaitForDrain(ctx); err != nil {
		return fmt.Errorf("drain imports: %w", err)
	}
	return s.dispatcher.Close()
}

// Generation returns the current generation token. Completions stamped
// with an older token belong to interests the caller has abandoned.
func (s *Service) Generation() uint64 {
	return s.gen.Load()
}

// AdvanceGeneration bumps the token. Callers do this when their interest
// changes (e.g. the active dataset switched); in-flight work still
// completes, its results just become discardable.
func (s *Service) AdvanceGeneration() uint64 {
	return s.gen.Add(1)
}

func (s *Service) newTask(kind string) Task {
	return Task{ID: uuid.New(), Gen: s.gen.Load(), Kind: kind}
}

// DispatchRead runs fn on a read worker and waits for its completion.
// Returns the completion so the caller can check the generation token.
func (s *Service) DispatchRead(ctx context.Context, kind string, fn func(context.Context) (any, error)) (Completion, error) {
	done := s.dispatcher.SubmitRead(ctx, s.newTask(kind), fn)
	select {
	case c := <-done:
		return c, c.Err
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	}
}

// DispatchWrite runs fn on the writer worker, serialized with every other
// write against this store, and waits for its completion. The write runs
// to completion even if ctx expires while it is queued or running.
func (s *Service) DispatchWrite(ctx context.Context, kind string, fn func(context.Context) (any, error)) (Completion, error) {
	done := s.dispatcher.SubmitWrite(context.WithoutCancel(ctx), s.newTask(kind), fn)
	select {
	case c := <-done:
		return c, c.Err
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	}
}

// StartImportCSV begins an asynchronous CSV import and returns its task
// immediately. Poll TaskStatus for the outcome.
func (s *Service) StartImportCSV(ctx context.Context, name, sourcePath string, data []byte) (Task, error) {
	return s.startImport(ctx, "import_csv", func(runCtx context.Context) ([]Dataset, error) {
		ds, err := s.ImportCSV(runCtx, name, sourcePath, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return []Dataset{ds}, nil
	})
}

// StartImportXLSX begins an asynchronous workbook import; each selected
// sheet becomes its own dataset.
func (s *Service) StartImportXLSX(ctx context.Context, name, sourcePath string, data []byte, sheets []string) (Task, error) {
	return s.startImport(ctx, "import_xlsx", func(runCtx context.Context) ([]Dataset, error) {
		return s.ImportXLSX(runCtx, name, sourcePath, bytes.NewReader(data), sheets)
	})
}

func (s *Service) startImport(ctx context.Context, kind string, run func(context.Context) ([]Dataset, error)) (Task, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return Task{}, err
	}

	task := s.newTask(kind)
	info := &TaskInfo{Task: task, Status: TaskRunning, StartedAt: time.Now()}

	s.mu.Lock()
	s.tasks[task.ID] = info
	s.mu.Unlock()

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.importTimeout)
	done := s.dispatcher.SubmitWrite(runCtx, task, func(c context.Context) (any, error) {
		datasets, err := run(c)
		return datasets, err
	})

	go func() {
		defer cancel()
		defer s.limiter.Release()

		c := <-done
		s.mu.Lock()
		info.Duration = time.Since(info.StartedAt).Round(time.Millisecond).String()
		if c.Err != nil {
			info.Status = TaskFailed
			info.Error = c.Err.Error()
		} else {
			info.Status = TaskComplete
			info.Datasets, _ = c.Value.([]Dataset)
		}
		s.mu.Unlock()

		s.cleanupTask(task.ID, taskRetention)
	}()

	return task, nil
}

// TaskStatus returns the state of a task, if it is still retained.
func (s *Service) TaskStatus(id uuid.UUID) (TaskInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.tasks[id]
	if !ok {
		return TaskInfo{}, false
	}
	return *info, true
}

// cleanupTask removes a finished task from the registry after delay.
func (s *Service) cleanupTask(id uuid.UUID, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.tasks, id)
		s.mu.Unlock()
	})
}
