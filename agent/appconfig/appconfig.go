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

// Package appconfig manages the configuration of the agent.
package appconfig

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/ini.v1"
)

const (
	// BusKindWebsocket selects the websocket bus transport.
	BusKindWebsocket = "websocket"

	// BusKindMangos selects the mangos pair socket bus transport.
	BusKindMangos = "mangos"
)

var loadedConfig *AgentConfig
var lock sync.RWMutex

// DefaultConfig returns the default agent configuration.
func DefaultConfig() AgentConfig {
	return AgentConfig{
		Bus: BusConfig{
			Kind:               BusKindWebsocket,
			Address:            "ws://localhost:8080/bus",
			OutboundQueueLimit: 1000,
			DialRetries:        5,
		},
		ResourceFileDir:      os.TempDir(),
		WorkerCommand:        "wps-worker",
		RedirectWorkerOutput: true,
	}
}

// Config loads the agent configuration from the given ini file.
// If reload is true, it loads the config afresh, otherwise it returns a
// previously loaded version, if any.
func Config(configPath string, reload bool) (AgentConfig, error) {
	if reload || !isLoaded() {
		agentConfig, err := load(configPath)
		if err != nil {
			return agentConfig, err
		}
		cache(agentConfig)
	}
	return getCached(), nil
}

func load(configPath string) (AgentConfig, error) {
	agentConfig := DefaultConfig()
	if configPath == "" {
		return agentConfig, nil
	}

	file, err := ini.Load(configPath)
	if err != nil {
		return agentConfig, fmt.Errorf("unable to load agent config %v: %v", configPath, err)
	}

	section := file.Section(ini.DefaultSection)
	agentConfig.Bus.Kind = section.Key("bus_kind").MustString(agentConfig.Bus.Kind)
	agentConfig.Bus.Address = section.Key("bus_address").MustString(agentConfig.Bus.Address)
	agentConfig.Bus.OutboundQueueLimit = section.Key("outbound_queue_limit").MustInt64(agentConfig.Bus.OutboundQueueLimit)
	agentConfig.Bus.DialRetries = section.Key("bus_dial_retries").MustUint64(agentConfig.Bus.DialRetries)
	agentConfig.ResourceFileDir = section.Key("resource_file_dir").MustString(agentConfig.ResourceFileDir)
	agentConfig.ExecutionSharedDir = section.Key("wps_execution_shared_dir").MustString(agentConfig.ExecutionSharedDir)
	agentConfig.WorkerCommand = section.Key("worker_command").MustString(agentConfig.WorkerCommand)
	agentConfig.SeelogConfigPath = section.Key("seelog_config_path").MustString(agentConfig.SeelogConfigPath)
	agentConfig.RedirectWorkerOutput = section.Key("redirect_worker_output_to_log").MustBool(agentConfig.RedirectWorkerOutput)

	if agentConfig.Bus.Kind != BusKindWebsocket && agentConfig.Bus.Kind != BusKindMangos {
		return agentConfig, fmt.Errorf("unsupported bus kind %q", agentConfig.Bus.Kind)
	}

	// the workers encode outputs on a shared filesystem, make sure it exists
	if agentConfig.ExecutionSharedDir != "" {
		if err := os.MkdirAll(agentConfig.ExecutionSharedDir, 0755); err != nil {
			return agentConfig, fmt.Errorf("unable to create shared execution dir %v: %v", agentConfig.ExecutionSharedDir, err)
		}
	}
	return agentConfig, nil
}

func isLoaded() bool {
	lock.RLock()
	defer lock.RUnlock()
	return loadedConfig != nil
}

func cache(config AgentConfig) {
	lock.Lock()
	defer lock.Unlock()
	loadedConfig = &config
}

func getCached() AgentConfig {
	lock.RLock()
	defer lock.RUnlock()
	return *loadedConfig
}
