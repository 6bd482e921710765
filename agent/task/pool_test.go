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
	"sync"
	"testing"
	"time"

	"github.com/geoserver/wps-remote-agent/agent/log"
	"github.com/geoserver/wps-remote-agent/agent/times"
	"github.com/stretchr/testify/assert"
)

func TestSubmitRunsJob(t *testing.T) {
	pool := NewPool(log.NewMockLog(), 10*time.Millisecond, times.DefaultClock)

	done := make(chan struct{})
	err := pool.Submit(log.NewMockLog(), "job-1", func(cancelFlag CancelFlag) {
		close(done)
	})
	assert.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}
	assert.True(t, pool.ShutdownAndWait(time.Second))
}

func TestSubmitDuplicateJobFails(t *testing.T) {
	pool := NewPool(log.NewMockLog(), 10*time.Millisecond, times.DefaultClock)

	release := make(chan struct{})
	assert.NoError(t, pool.Submit(log.NewMockLog(), "job-1", func(cancelFlag CancelFlag) {
		<-release
	}))
	assert.Error(t, pool.Submit(log.NewMockLog(), "job-1", func(cancelFlag CancelFlag) {}))

	close(release)
	assert.True(t, pool.ShutdownAndWait(time.Second))
}

func TestCancelWakesUpJob(t *testing.T) {
	pool := NewPool(log.NewMockLog(), 10*time.Millisecond, times.DefaultClock)

	var observed State
	var observedMutex sync.Mutex
	done := make(chan struct{})
	assert.NoError(t, pool.Submit(log.NewMockLog(), "job-1", func(cancelFlag CancelFlag) {
		state := cancelFlag.Wait()
		observedMutex.Lock()
		observed = state
		observedMutex.Unlock()
		close(done)
	}))

	// wait until the pool tracks the job, then cancel it
	for i := 0; i < 200 && !pool.HasJob("job-1"); i++ {
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, pool.Cancel("job-1"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job never woke up from cancellation")
	}
	observedMutex.Lock()
	assert.Equal(t, Canceled, observed)
	observedMutex.Unlock()

	// canceling again finds no job
	assert.False(t, pool.Cancel("job-1"))
}

func TestShutdownAndWaitFinishesJobs(t *testing.T) {
	pool := NewPool(log.NewMockLog(), 10*time.Millisecond, times.DefaultClock)

	assert.NoError(t, pool.Submit(log.NewMockLog(), "job-1", func(cancelFlag CancelFlag) {
		cancelFlag.Wait()
	}))
	assert.NoError(t, pool.Submit(log.NewMockLog(), "job-2", func(cancelFlag CancelFlag) {
		cancelFlag.Wait()
	}))

	assert.True(t, pool.ShutdownAndWait(5*time.Second))
	assert.False(t, pool.HasJob("job-1"))
	assert.False(t, pool.HasJob("job-2"))
}

func TestShutdownAndWaitTimesOutOnStuckJob(t *testing.T) {
	// a long cancel wait keeps the pool attached to the stuck job
	pool := NewPool(log.NewMockLog(), time.Hour, times.DefaultClock)

	release := make(chan struct{})
	assert.NoError(t, pool.Submit(log.NewMockLog(), "job-1", func(cancelFlag CancelFlag) {
		<-release
	}))

	assert.False(t, pool.ShutdownAndWait(50*time.Millisecond))
	close(release)
}

func TestSubmitAfterShutdownFails(t *testing.T) {
	pool := NewPool(log.NewMockLog(), 10*time.Millisecond, times.DefaultClock)
	pool.Shutdown()
	assert.Error(t, pool.Submit(log.NewMockLog(), "job-1", func(cancelFlag CancelFlag) {}))
}

func TestJobPanicDoesNotKillPool(t *testing.T) {
	pool := NewPool(log.NewMockLog(), 10*time.Millisecond, times.DefaultClock)

	assert.NoError(t, pool.Submit(log.NewMockLog(), "job-1", func(cancelFlag CancelFlag) {
		panic("worker supervision blew up")
	}))
	assert.True(t, pool.ShutdownAndWait(5*time.Second))
}
