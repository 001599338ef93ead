package systems

import (
	"context"
	"fmt"
	"sync"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type JobSystem struct {
	numWorkers int
	jobQueue   chan metadata.JobTask
	wg         sync.WaitGroup
	// guards jobQueue against sends after Shutdown closed it
	mu     sync.RWMutex
	closed bool
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")
var ErrJobSystemClosed = fmt.Errorf("job system has been shut down")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	jq := make(chan metadata.JobTask, channelSize)
	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   jq,
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.execute(job)
			}
		}()
	}
}

func (js *JobSystem) execute(job metadata.JobTask) {
	if job.OnCompletionCallback != nil {
		defer job.OnCompletionCallback()
	}
	if job.OnStart == nil {
		return
	}
	results := make(chan interface{}, 1)
	if err := job.OnStart(job.InputParams, results); err != nil {
		core.LogError("%s job failed: %s", job.Type, err)
		if job.OnFailure != nil {
			job.OnFailure(results)
		}
		return
	}
	if job.OnComplete != nil {
		job.OnComplete(results)
	}
}

// NumWorkers returns the number of worker goroutines.
func (js *JobSystem) NumWorkers() int {
	return js.numWorkers
}

/**
 * @brief Shuts the job system down. Queued jobs are drained first.
 */
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.mu.Unlock()
	js.wg.Wait()
	return nil
}

/**
 * @brief Submits the provided job to be queued for execution.
 * Blocks while the queue is full, until ctx is done.
 */
func (js *JobSystem) Submit(ctx context.Context, jt metadata.JobTask) error {
	js.mu.RLock()
	defer js.mu.RUnlock()
	if js.closed {
		return ErrJobSystemClosed
	}
	select {
	case js.jobQueue <- jt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run spreads work over the workers and waits until every queued item has
// finished. Work must not submit to the same job system. If ctx is cancelled
// before everything is queued, the queued items are still awaited and the
// context error is returned.
func (js *JobSystem) Run(ctx context.Context, kind metadata.JobType, work []func()) error {
	var done sync.WaitGroup
	for _, fn := range work {
		done.Add(1)
		task := metadata.JobTask{
			Type: kind,
			OnStart: func(interface{}, chan<- interface{}) error {
				fn()
				return nil
			},
			OnCompletionCallback: done.Done,
		}
		if err := js.Submit(ctx, task); err != nil {
			done.Done()
			done.Wait()
			return err
		}
	}
	done.Wait()
	return nil
}
