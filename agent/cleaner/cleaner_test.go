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

package cleaner

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/geoserver/wps-remote-agent/agent/times"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndReadRecord(t *testing.T) {
	clock := times.NewMockedClock()
	clock.On("Now").Return(time.Date(2021, 3, 14, 9, 26, 53, 0, time.UTC))

	resourceDir := filepath.Join(t.TempDir(), "resources")
	require.NoError(t, WriteRecord(resourceDir, "exec-1", "/share/wps/output/exec-1", clock))

	record, err := ReadRecord(resourceDir, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "exec-1", record.UniqueID)
	assert.Equal(t, "/share/wps/output/exec-1", record.OutputDir)
	assert.Equal(t, "2021-03-14T09:26:53.000Z", record.Created)
}

func TestReadMissingRecord(t *testing.T) {
	_, err := ReadRecord(t.TempDir(), "unknown")
	assert.Error(t, err)
}

func TestWriteRecordCreatesResourceDir(t *testing.T) {
	clock := times.NewMockedClock()
	clock.On("Now").Return(time.Now())

	resourceDir := filepath.Join(t.TempDir(), "nested", "resources")
	require.NoError(t, WriteRecord(resourceDir, "exec-2", "/share/wps/output/exec-2", clock))

	_, err := ReadRecord(resourceDir, "exec-2")
	assert.NoError(t, err)
}
