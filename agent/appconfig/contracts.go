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

package appconfig

// BusConfig holds the message bus transport selection and its endpoint.
// The transport is chosen here explicitly, never discovered at runtime.
type BusConfig struct {
	// Kind selects the concrete transport, one of "websocket" or "mangos".
	Kind string

	// Address is the endpoint the transport dials, e.g. ws://host:port/bus
	// for websocket or tcp://host:port for mangos.
	Address string

	// OutboundQueueLimit bounds the outbound message queue. Send rejects
	// messages while the queue holds this many undelivered entries.
	OutboundQueueLimit int64

	// DialRetries is the number of dial attempts before Listen gives up.
	DialRetries uint64
}

// AgentConfig holds the agent level (remote) configuration. It is loaded
// once at startup and never mutated afterwards.
type AgentConfig struct {
	Bus BusConfig

	// ResourceFileDir is where resource cleanup records are written for
	// the external reaper.
	ResourceFileDir string

	// ExecutionSharedDir is the shared filesystem directory where workers
	// encode their outputs. Optional.
	ExecutionSharedDir string

	// WorkerCommand is the command line used to launch the worker process,
	// e.g. "python wpsagent.py". The agent appends its own configuration
	// paths and the parameter file path as arguments.
	WorkerCommand string

	// SeelogConfigPath points to a custom seelog XML configuration.
	// Empty means the built-in default.
	SeelogConfigPath string

	// RedirectWorkerOutput forwards every worker output line to the agent
	// log at debug level.
	RedirectWorkerOutput bool
}
