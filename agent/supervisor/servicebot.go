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

// Package supervisor implements the service bot: it reacts to invite,
// execute and capacity probe messages, spawns one worker process per
// execution request and supervises each worker until its outcome is
// resolved and, on failure, reported to the request originator.
package supervisor

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/geoserver/wps-remote-agent/agent/context"
	"github.com/geoserver/wps-remote-agent/agent/messagebus"
	"github.com/geoserver/wps-remote-agent/agent/monitor"
	"github.com/geoserver/wps-remote-agent/agent/servicedef"
	"github.com/geoserver/wps-remote-agent/agent/task"
	"github.com/geoserver/wps-remote-agent/agent/times"
	"github.com/google/shlex"
)

const (
	// graceTimeout is how long a worker may keep running after closing
	// its output stream before it is forcibly killed.
	graceTimeout = 10 * time.Second

	// cancelWaitDuration is how long the pool waits for a supervision
	// task to wind down after a cancellation request.
	cancelWaitDuration = 10 * time.Second
)

// loadAverageDescriptions are the fixed labels of a capacity reply; the
// remote endpoint matches on them verbatim.
var loadAverageDescriptions = map[string]string{
	"loadavg": "Average Load on CPUs during the last 15 minutes.",
	"vmem":    "Percentage of Memory used by the server.",
}

// ServiceBot serves one processing service over the message bus.
type ServiceBot struct {
	context context.T
	def     *servicedef.ServiceDefinition
	bus     messagebus.Bus
	sampler monitor.Sampler
	pool    task.Pool
	clock   times.Clock

	// paths handed down to each worker invocation
	remoteConfigPath  string
	serviceConfigPath string

	workerCommand  string
	workerArgs     []string
	redirectOutput bool

	// last known remote endpoint, refreshed by every invite
	remoteEndpoint string
	endpointMutex  sync.RWMutex
}

// NewServiceBot wires a bot to the given bus, service definition and
// resource sampler and registers its message handlers.
func NewServiceBot(ctx context.T, bus messagebus.Bus, def *servicedef.ServiceDefinition, sampler monitor.Sampler, remoteConfigPath string, serviceConfigPath string) (*ServiceBot, error) {
	config := ctx.AppConfig()

	argv, err := shlex.Split(config.WorkerCommand)
	if err != nil {
		return nil, fmt.Errorf("malformed worker command %q: %v", config.WorkerCommand, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("no worker command configured")
	}

	botContext := ctx.With("[ServiceBot " + def.Service + "]")
	bot := &ServiceBot{
		context:           botContext,
		def:               def,
		bus:               bus,
		sampler:           sampler,
		pool:              task.NewPool(botContext.Log(), cancelWaitDuration, times.DefaultClock),
		clock:             times.DefaultClock,
		remoteConfigPath:  remoteConfigPath,
		serviceConfigPath: serviceConfigPath,
		workerCommand:     argv[0],
		workerArgs:        argv[1:],
		redirectOutput:    config.RedirectWorkerOutput,
	}

	if err := bus.RegisterHandler(messagebus.KindInvite, bot.handleInvite); err != nil {
		return nil, err
	}
	if err := bus.RegisterHandler(messagebus.KindExecute, bot.handleExecute); err != nil {
		return nil, err
	}
	if err := bus.RegisterHandler(messagebus.KindGetLoadAverage, bot.handleGetLoadAverage); err != nil {
		return nil, err
	}
	return bot, nil
}

// Run blocks serving bus messages until the bus is closed. A disabled
// service refuses to serve.
func (b *ServiceBot) Run() error {
	log := b.context.Log()
	if !b.def.Active {
		log.Error("This service is disabled, exit process")
		return nil
	}
	log.Infof("Serving service %v (namespace %v)", b.def.Service, b.def.Namespace)
	return b.bus.Listen()
}

// Shutdown cancels the running supervision tasks and closes the bus.
func (b *ServiceBot) Shutdown(timeout time.Duration) {
	log := b.context.Log()
	if finished := b.pool.ShutdownAndWait(timeout); !finished {
		log.Error("supervision tasks still running at shutdown, abandoning them")
	}
	b.bus.Close()
}

// handleInvite answers a service announcement request with a register
// message carrying the parameter schemas.
func (b *ServiceBot) handleInvite(msg messagebus.Message) {
	log := b.context.Log()
	invite, ok := msg.(*messagebus.InviteMessage)
	if !ok {
		log.Errorf("invite handler received %T", msg)
		return
	}
	log.Info("handle invite message from ", invite.Originator)

	// remember the inviter as fallback destination for later failures
	b.setRemoteEndpoint(invite.Originator)

	if !b.ensureConnected() {
		return
	}
	register := &messagebus.RegisterMessage{
		Destination:  invite.Originator,
		Service:      b.def.Service,
		Namespace:    b.def.Namespace,
		Description:  b.def.Description,
		InputSchema:  json.RawMessage(b.def.InterchangeInputs()),
		OutputSchema: json.RawMessage(b.def.InterchangeOutputs()),
	}
	if err := b.bus.Send(register); err != nil {
		log.Errorf("[Bus Disconnected]: Service %v could not send register message: %v", b.def.Service, err)
	}
}

// handleGetLoadAverage answers a capacity probe with the current load and
// memory readings, averaged with the monitor's smoothed window when one is
// available. A running blacklisted process overrides both values with full
// saturation.
func (b *ServiceBot) handleGetLoadAverage(msg messagebus.Message) {
	log := b.context.Log()
	probe, ok := msg.(*messagebus.GetLoadAverageMessage)
	if !ok {
		log.Errorf("getloadavg handler received %T", msg)
		return
	}
	log.Info("handle getloadavg message from ", probe.Originator)

	loadavg, err := b.sampler.InstantLoadPercent()
	if err != nil {
		log.Errorf("Load average initialization error: %v", err)
		return
	}
	if smoothed := b.sampler.LatestLoadPercent(); smoothed > 0 {
		loadavg = (loadavg + smoothed) / 2.0
	}

	vmem, err := b.sampler.InstantMemoryPercent()
	if err != nil {
		log.Errorf("Load average initialization error: %v", err)
		return
	}
	if smoothed := b.sampler.LatestMemoryPercent(); smoothed > 0 {
		vmem = (vmem + smoothed) / 2.0
	}

	log.Infof("Scanning running processes. Declared blacklist: %v", b.def.ProcessBlacklist)
	if b.sampler.IsBlacklistedProcessRunning(b.def.ProcessBlacklist) {
		log.Info("A blacklisted process is running! Setting loadavg and vmem to (100.0, 100.0)")
		loadavg, vmem = 100.0, 100.0
	}

	if !b.ensureConnected() {
		return
	}
	reply := &messagebus.LoadAverageMessage{
		Destination: probe.Originator,
		Outputs: map[string]messagebus.LoadAverageOutput{
			"loadavg": {Value: loadavg, Description: loadAverageDescriptions["loadavg"]},
			"vmem":    {Value: vmem, Description: loadAverageDescriptions["vmem"]},
		},
	}
	if err := b.bus.Send(reply); err != nil {
		log.Errorf("[Bus Disconnected]: Service %v could not send loadavg message: %v", b.def.Service, err)
	}
}

// SendErrorMessage reports an agent level failure to the last known remote
// endpoint. With no endpoint on record the failure can only be logged.
func (b *ServiceBot) SendErrorMessage(text string) {
	log := b.context.Log()
	log.Error(text)

	endpoint := b.RemoteEndpoint()
	if endpoint == "" {
		log.Errorf("Process %v STALLED! Don't know who to send ERROR Message...", b.def.Service)
		return
	}
	if !b.ensureConnected() {
		return
	}
	if err := b.bus.Send(&messagebus.ErrorMessage{Destination: endpoint, Text: text}); err != nil {
		log.Errorf("[Bus Disconnected]: Service %v could not send error message to endpoint %v: %v", b.def.Service, endpoint, err)
	}
}

// ensureConnected reconnects a disconnected bus. Returns false when the
// bus stays unreachable; the caller gives up on its message.
func (b *ServiceBot) ensureConnected() bool {
	if b.bus.State() == messagebus.Connected {
		return true
	}
	if err := b.bus.Reconnect(); err != nil {
		b.context.Log().Errorf("[Bus Disconnected]: Service %v could not reconnect: %v", b.def.Service, err)
		return false
	}
	return true
}

// RemoteEndpoint returns the last known remote endpoint, empty when no
// invite has been seen yet.
func (b *ServiceBot) RemoteEndpoint() string {
	b.endpointMutex.RLock()
	defer b.endpointMutex.RUnlock()
	return b.remoteEndpoint
}

func (b *ServiceBot) setRemoteEndpoint(endpoint string) {
	if endpoint == "" {
		return
	}
	b.endpointMutex.Lock()
	b.remoteEndpoint = endpoint
	b.endpointMutex.Unlock()
}
