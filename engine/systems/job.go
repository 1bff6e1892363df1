package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/lumen/engine/core"
)

/**
 * @brief A unit of work run by the job system. OnStart is required, the
 * callbacks are optional and run on the worker after OnStart returns.
 */
type JobTask struct {
	Name                 string
	OnStart              func() error
	OnComplete           func()
	OnFailure            func(err error)
	OnCompletionCallback func()
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
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
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job JobTask) {
	if job.OnCompletionCallback != nil {
		defer job.OnCompletionCallback()
	}
	if job.OnStart == nil {
		core.LogWarn("job `%s` has no entry point", job.Name)
		return
	}
	if err := job.OnStart(); err != nil {
		core.LogError("job `%s` failed: %s", job.Name, err.Error())
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
		return
	}
	if job.OnComplete != nil {
		job.OnComplete()
	}
}

/**
 * @brief Shuts the job system down, waiting for queued jobs to finish.
 */
func (js *JobSystem) Shutdown() error {
	js.closeOnce.Do(func() { close(js.jobQueue) })
	js.wg.Wait()
	return nil
}

// AddWorkNonBlocking queues the job from a new goroutine and returns immediately.
func (js *JobSystem) AddWorkNonBlocking(jt JobTask) {
	go js.Submit(jt)
}

/**
 * @brief Submits the provided job to be queued for execution.
 * @param jt The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt JobTask) {
	js.jobQueue <- jt
}

/**
 * @brief Runs every entry point on the workers and blocks until all of them
 * finished. The returned error joins the failures of all jobs.
 */
func (js *JobSystem) SubmitAndWait(name string, work ...func() error) error {
	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	wg.Add(len(work))
	for i, fn := range work {
		js.Submit(JobTask{
			Name:    fmt.Sprintf("%s#%d", name, i),
			OnStart: fn,
			OnFailure: func(err error) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			},
			OnCompletionCallback: wg.Done,
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}
