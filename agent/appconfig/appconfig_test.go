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

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAgentConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "remote.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, BusKindWebsocket, config.Bus.Kind)
	assert.NotEmpty(t, config.Bus.Address)
	assert.True(t, config.Bus.OutboundQueueLimit > 0)
	assert.Equal(t, "wps-worker", config.WorkerCommand)
	assert.True(t, config.RedirectWorkerOutput)
}

func TestConfigLoadsIniValues(t *testing.T) {
	sharedDir := filepath.Join(t.TempDir(), "wps-share")
	path := writeAgentConfig(t, `
bus_kind = mangos
bus_address = tcp://broker:5670
outbound_queue_limit = 50
bus_dial_retries = 3
resource_file_dir = /var/wps/resources
wps_execution_shared_dir = `+sharedDir+`
worker_command = "python wpsagent.py"
redirect_worker_output_to_log = false
`)

	config, err := Config(path, true)
	require.NoError(t, err)

	assert.Equal(t, BusKindMangos, config.Bus.Kind)
	assert.Equal(t, "tcp://broker:5670", config.Bus.Address)
	assert.Equal(t, int64(50), config.Bus.OutboundQueueLimit)
	assert.Equal(t, uint64(3), config.Bus.DialRetries)
	assert.Equal(t, "/var/wps/resources", config.ResourceFileDir)
	assert.Equal(t, sharedDir, config.ExecutionSharedDir)
	assert.Equal(t, "python wpsagent.py", config.WorkerCommand)
	assert.False(t, config.RedirectWorkerOutput)

	// the shared execution dir is created on load
	info, err := os.Stat(sharedDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConfigRejectsUnknownBusKind(t *testing.T) {
	path := writeAgentConfig(t, "bus_kind = pigeon\n")

	_, err := Config(path, true)
	assert.Error(t, err)
}

func TestConfigWithoutPathUsesDefaults(t *testing.T) {
	config, err := Config("", true)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestConfigIsCachedUntilReload(t *testing.T) {
	first := writeAgentConfig(t, "worker_command = first-worker\n")
	second := writeAgentConfig(t, "worker_command = second-worker\n")

	config, err := Config(first, true)
	require.NoError(t, err)
	assert.Equal(t, "first-worker", config.WorkerCommand)

	// without reload the cached config wins
	config, err = Config(second, false)
	require.NoError(t, err)
	assert.Equal(t, "first-worker", config.WorkerCommand)

	config, err = Config(second, true)
	require.NoError(t, err)
	assert.Equal(t, "second-worker", config.WorkerCommand)
}
