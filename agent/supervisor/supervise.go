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

package supervisor

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime/debug"

	"github.com/geoserver/wps-remote-agent/agent/cleaner"
	"github.com/geoserver/wps-remote-agent/agent/context"
	"github.com/geoserver/wps-remote-agent/agent/executers"
	"github.com/geoserver/wps-remote-agent/agent/messagebus"
	"github.com/geoserver/wps-remote-agent/agent/params"
	"github.com/geoserver/wps-remote-agent/agent/task"
)

// WorkerHandle is the slice of a running worker the supervisor needs.
// Satisfied by executers.WorkerProcess.
type WorkerHandle interface {
	Pid() int
	Output() io.ReadCloser
	Poll() (exitCode int, exited bool)
	WaitExit() int
	Kill() error
}

// seams for tests
var (
	serializeParams    = params.Serialize
	deserializeParams  = params.Deserialize
	writeCleanerRecord = cleaner.WriteRecord

	startWorker = func(ctx context.T, commandName string, commandArguments []string, paramFilePath string) (WorkerHandle, error) {
		return executers.StartWorker(ctx, "", commandName, commandArguments, paramFilePath)
	}
)

// handleExecute accepts one execution request: it persists the request to
// a parameter file, spawns the worker and hands supervision off to the
// task pool. The handler itself returns quickly so the listen loop stays
// responsive.
func (b *ServiceBot) handleExecute(msg messagebus.Message) {
	request, ok := msg.(*messagebus.ExecuteMessage)
	if !ok {
		b.context.Log().Errorf("execute handler received %T", msg)
		return
	}

	jobContext := b.context.With("[jobID=" + request.UniqueID + "]")
	log := jobContext.Log()
	log.Info("handle execute message from ", request.Originator)

	paramFilePath, err := serializeParams(request)
	if err != nil {
		log.Errorf("unable to store parameters of request %v: %v", request.UniqueID, err)
		return
	}
	log.Debugf("saved parameter file for executing process %v in %v", b.def.Service, paramFilePath)

	// best effort, a failed record only weakens later cleanup
	config := b.context.AppConfig()
	outputDir := filepath.Join(b.def.OutputDir, request.UniqueID)
	if err := writeCleanerRecord(config.ResourceFileDir, request.UniqueID, outputDir, b.clock); err != nil {
		log.Errorf("Resource cleaner initialization error: %v", err)
	}

	arguments := append([]string{}, b.workerArgs...)
	arguments = append(arguments,
		"-r", b.remoteConfigPath,
		"-s", b.serviceConfigPath,
		"-p", paramFilePath,
		"process")
	worker, err := startWorker(jobContext, b.workerCommand, arguments, paramFilePath)
	if err != nil {
		// no worker means no recovery tiers either, the request is lost
		log.Errorf("unable to launch worker for request %v: %v", request.UniqueID, err)
		return
	}
	log.Infof("created process %v with PId %v", b.def.Service, worker.Pid())

	err = b.pool.Submit(log, request.UniqueID, func(cancelFlag task.CancelFlag) {
		b.superviseWorker(jobContext, worker, request, paramFilePath, cancelFlag)
	})
	if err != nil {
		log.Errorf("unable to supervise request %v: %v", request.UniqueID, err)
		if killErr := worker.Kill(); killErr != nil {
			log.Errorf("unable to kill unsupervised worker PId %v: %v", worker.Pid(), killErr)
		}
		return
	}
	log.Info("end of execute message handler, going back in listening mode")
}

// superviseWorker follows one worker from spawn to resolved outcome. It
// scrapes the output stream for originator tags, waits for the process to
// exit once the stream ends and routes a failure report when the exit code
// is not zero.
func (b *ServiceBot) superviseWorker(ctx context.T, worker WorkerHandle, request *messagebus.ExecuteMessage, paramFilePath string, cancelFlag task.CancelFlag) {
	log := ctx.Log()
	log.Infof("wait for end of execution of created process %v, PId %v", b.def.Service, worker.Pid())

	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go b.watchWorker(ctx, worker, cancelFlag, watchdogDone)

	// blocks until the worker's output reaches end-of-stream
	recovery := scanWorkerOutput(log, worker.Output(), b.redirectOutput)

	exitCode, exited := worker.Poll()
	if !exited {
		// output is closed but the process lingers, give it a short grace
		// window before killing it
		graceOver := make(chan struct{})
		go func() {
			select {
			case <-b.clock.After(graceTimeout):
				log.Warnf("process %v PId %v still alive %v after closing its output, killing it", b.def.Service, worker.Pid(), graceTimeout)
				if err := worker.Kill(); err != nil {
					log.Errorf("unable to kill process %v PId %v: %v", b.def.Service, worker.Pid(), err)
				}
			case <-graceOver:
			}
		}()
		exitCode = worker.WaitExit()
		close(graceOver)
	}

	if exitCode == 0 {
		log.Debugf("Process %v PId %v terminated successfully!", b.def.Service, worker.Pid())
		return
	}

	failureText := fmt.Sprintf("Process %v PId %v terminated with exit code %v", b.def.Service, worker.Pid(), exitCode)
	log.Critical(failureText)
	b.routeFailure(ctx, recovery, worker.Pid(), paramFilePath, failureText)
}

// watchWorker kills the worker when its supervision task is canceled or
// when the configured maximum running time elapses. Exits silently once
// the supervision itself finishes.
func (b *ServiceBot) watchWorker(ctx context.T, worker WorkerHandle, cancelFlag task.CancelFlag, done chan struct{}) {
	log := ctx.Log()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("worker watchdog panic: %v", r)
			log.Errorf("Stacktrace:\n%s", debug.Stack())
		}
	}()

	canceled := make(chan struct{})
	go func() {
		cancelFlag.Wait()
		close(canceled)
	}()

	var maxRunningTime <-chan struct{}
	if b.def.MaxRunningTime > 0 {
		expired := make(chan struct{})
		maxRunningTime = expired
		go func() {
			select {
			case <-b.clock.After(b.def.MaxRunningTime):
				close(expired)
			case <-done:
			}
		}()
	}

	select {
	case <-done:
	case <-canceled:
		if !cancelFlag.Canceled() && !cancelFlag.ShutDown() {
			// flag completed normally, nothing to kill
			return
		}
		log.Infof("supervision canceled, killing process %v PId %v", b.def.Service, worker.Pid())
		if err := worker.Kill(); err != nil {
			log.Errorf("unable to kill process %v PId %v: %v", b.def.Service, worker.Pid(), err)
		}
	case <-maxRunningTime:
		log.Errorf("process %v PId %v exceeded its maximum running time %v, killing it", b.def.Service, worker.Pid(), b.def.MaxRunningTime)
		if err := worker.Kill(); err != nil {
			log.Errorf("unable to kill process %v PId %v: %v", b.def.Service, worker.Pid(), err)
		}
	}
}

// routeFailure reports a worker failure to its originator, trying in
// order: the originator captured from the worker's own output, the last
// known remote endpoint, and finally the originator restored from the
// parameter file. With all three exhausted the failure is only logged.
func (b *ServiceBot) routeFailure(ctx context.T, recovery *recoveryState, pid int, paramFilePath string, failureText string) {
	log := ctx.Log()
	log.Debugf("captured UID[%v] / JID[%v]", recovery.uid, recovery.jid)

	var report *messagebus.ErrorMessage
	switch {
	case recovery.complete():
		text := failureText
		if recovery.msg != "" {
			text += " Exception: " + recovery.msg
		}
		report = &messagebus.ErrorMessage{Destination: recovery.jid, Text: text, UniqueID: recovery.uid}

	case b.RemoteEndpoint() != "":
		report = &messagebus.ErrorMessage{Destination: b.RemoteEndpoint(), Text: failureText}

	default:
		restored, err := deserializeParams(paramFilePath)
		if err != nil || restored.Originator == "" {
			log.Errorf("Process %v PId %v STALLED! Don't know who to send ERROR Message...", b.def.Service, pid)
			return
		}
		report = &messagebus.ErrorMessage{
			Destination: restored.Originator,
			Text:        failureText + " Exception: remote process exception. Please check outputs!",
			UniqueID:    restored.UniqueID,
		}
	}

	if !b.ensureConnected() {
		return
	}
	if err := b.bus.Send(report); err != nil {
		log.Errorf("[Bus Disconnected]: Service %v could not send error message to endpoint %v: %v", b.def.Service, report.Destination, err)
	}
}
