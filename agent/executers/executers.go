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

// Package executers launches worker processes and exposes their combined
// output stream and exit status to the supervisor.
package executers

import (
	"io"
	"os"
	"os/exec"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/geoserver/wps-remote-agent/agent/context"
	"github.com/geoserver/wps-remote-agent/agent/log"
)

// WorkerProcess represents one running worker. The combined output stream
// is the worker's only channel back to the supervisor besides its exit
// code. Owned exclusively by the supervising task.
type WorkerProcess struct {
	pid           int
	startTime     time.Time
	paramFilePath string
	output        io.ReadCloser

	command  *exec.Cmd
	done     chan struct{}
	exitCode int
}

// StartWorker launches the worker as a separate process and captures its
// combined stdout/stderr stream. There is no retry on launch failure; the
// caller logs the error and the request is considered lost.
func StartWorker(ctx context.T, workingDir string, commandName string, commandArguments []string, paramFilePath string) (*WorkerProcess, error) {
	log := ctx.Log()

	command := exec.Command(commandName, commandArguments...)
	command.Dir = workingDir

	// a plain OS pipe gives end-of-stream semantics tied to the worker's
	// descriptors, not to our Wait call
	readPipe, writePipe, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	command.Stdout = writePipe
	command.Stderr = writePipe

	// configure OS-specific process settings
	prepareProcess(command)

	log.Debugf("Running in directory %v, command: %v %v", workingDir, commandName, commandArguments)
	if err = command.Start(); err != nil {
		readPipe.Close()
		writePipe.Close()
		return nil, err
	}

	// the worker holds its own copy of the write end
	writePipe.Close()

	worker := &WorkerProcess{
		pid:           command.Process.Pid,
		startTime:     time.Now(),
		paramFilePath: paramFilePath,
		output:        readPipe,
		command:       command,
		done:          make(chan struct{}),
	}
	go worker.reap(log)
	return worker, nil
}

// reap collects the worker's exit status as soon as it terminates.
func (w *WorkerProcess) reap(log log.T) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Worker reaper panic: %v", r)
			log.Errorf("Stacktrace:\n%s", debug.Stack())
		}
	}()
	err := w.command.Wait()
	w.exitCode = ExitCodeOf(err)
	close(w.done)
}

// Pid returns the worker's process id.
func (w *WorkerProcess) Pid() int {
	return w.pid
}

// StartTime returns when the worker was launched.
func (w *WorkerProcess) StartTime() time.Time {
	return w.startTime
}

// ParamFilePath returns the path of the parameter file the worker was
// launched with.
func (w *WorkerProcess) ParamFilePath() string {
	return w.paramFilePath
}

// Output returns the worker's combined stdout/stderr stream. It reaches
// end-of-stream when the worker exits or closes its output descriptors.
func (w *WorkerProcess) Output() io.ReadCloser {
	return w.output
}

// Poll returns the worker's exit code without blocking. The second return
// value reports whether the worker has exited.
func (w *WorkerProcess) Poll() (exitCode int, exited bool) {
	select {
	case <-w.done:
		return w.exitCode, true
	default:
		return -1, false
	}
}

// WaitExit blocks until the worker has exited and returns its exit code.
func (w *WorkerProcess) WaitExit() int {
	<-w.done
	return w.exitCode
}

// Kill forcibly terminates the worker.
func (w *WorkerProcess) Kill() error {
	return killProcess(w.command.Process)
}

// ExitCodeOf maps the error returned by exec.Cmd.Wait to an exit code.
// A worker terminated by a kill yields -1.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exiterr, ok := err.(*exec.ExitError); ok {
		if status, ok := exiterr.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus()
		}
	}
	return -1
}
