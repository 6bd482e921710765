// Copyright 2016 Open Source Geospatial Foundation - all rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may not
// use this file except in compliance with the License. A copy of the
// License is located at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing
// permissions and limitations under the License.

package task

import (
	"fmt"
	"sync"
	"time"

	"github.com/geoserver/wps-remote-agent/agent/log"
	"github.com/geoserver/wps-remote-agent/agent/times"
)

// Job is a supervision job. It receives the cancel flag of its token and
// must react to it cooperatively.
type Job func(cancelFlag CancelFlag)

// Pool runs each submitted job in its own go routine. Jobs are keyed by
// their unique ids; exactly one job exists per execution request.
type Pool interface {
	// Submit starts the given job in a new go routine. Returns an error if
	// a job with the same id already exists or the pool is shut down.
	Submit(log log.T, jobID string, job Job) error

	// Cancel cancels the given job by setting its CancelFlag to the
	// Canceled state. It is the responsibility of the job to terminate
	// within a reasonable time. Returns true if the job has been found and
	// canceled, false if the job was not found.
	Cancel(jobID string) bool

	// HasJob returns whether the pool currently tracks the given job.
	HasJob(jobID string) bool

	// Shutdown sets the CancelFlag of all running jobs to ShutDown.
	Shutdown()

	// ShutdownAndWait calls Shutdown then waits until all the jobs have
	// exited or until the timeout has elapsed, whichever comes first.
	// Returns true if all jobs terminated before the timeout.
	ShutdownAndWait(timeout time.Duration) (finished bool)
}

// pool implements a task pool where every job runs in its own go routine.
type pool struct {
	log            log.T
	jobStore       *JobStore
	clock          times.Clock
	cancelDuration time.Duration
	jobWaitGroup   sync.WaitGroup
	isShutdown     bool
	mut            sync.Mutex
}

// JobToken embeds a job and its associated info.
type JobToken struct {
	id         string
	job        Job
	cancelFlag *ChanneledCancelFlag
	log        log.T
}

// NewPool creates a new task pool. The cancelWaitDuration parameter
// defines how long to wait for a job to complete a cancellation request.
func NewPool(log log.T, cancelWaitDuration time.Duration, clock times.Clock) Pool {
	return &pool{
		log:            log,
		jobStore:       NewJobStore(),
		clock:          clock,
		cancelDuration: cancelWaitDuration,
	}
}

// Submit starts the given job in its own go routine.
func (p *pool) Submit(log log.T, jobID string, job Job) error {
	p.mut.Lock()
	defer p.mut.Unlock()
	if p.isShutdown {
		return fmt.Errorf("attempting to add job %v to a shut down pool", jobID)
	}

	token := &JobToken{
		id:         jobID,
		job:        job,
		cancelFlag: NewChanneledCancelFlag(),
		log:        log,
	}
	if err := p.jobStore.AddJob(jobID, token); err != nil {
		return err
	}

	p.jobWaitGroup.Add(1)
	go func() {
		defer p.jobWaitGroup.Done()
		defer p.jobStore.DeleteJob(token.id)
		process(token.log, token.job, token.cancelFlag, p.cancelDuration, p.clock)
	}()
	return nil
}

// HasJob returns whether the pool currently tracks the given job.
func (p *pool) HasJob(jobID string) bool {
	_, found := p.jobStore.GetJob(jobID)
	return found
}

// Cancel cancels the job with the given id.
func (p *pool) Cancel(jobID string) (canceled bool) {
	token, found := p.jobStore.GetJob(jobID)
	if !found {
		return false
	}

	// delete job to avoid multiple cancellations
	p.jobStore.DeleteJob(jobID)

	token.cancelFlag.Set(Canceled)
	return true
}

// Shutdown requests all running jobs to shut down.
func (p *pool) Shutdown() {
	p.mut.Lock()
	p.isShutdown = true
	p.mut.Unlock()

	for _, token := range p.jobStore.DeleteAllJobs() {
		token.cancelFlag.Set(ShutDown)
	}
}

// ShutdownAndWait calls Shutdown then waits until all the jobs have exited
// or until the timeout has elapsed, whichever comes first.
func (p *pool) ShutdownAndWait(timeout time.Duration) (finished bool) {
	p.Shutdown()

	done := make(chan struct{})
	go func() {
		p.jobWaitGroup.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Debug("Pool shutdown normally.")
		return true
	case <-p.clock.After(timeout):
		p.log.Debug("Pool shutdown timed out with jobs still running")
		return false
	}
}
