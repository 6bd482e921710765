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

// Package cleaner writes resource cleanup records so an external reaper
// can garbage-collect abandoned job output even if the agent crashes.
package cleaner

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/geoserver/wps-remote-agent/agent/times"
)

// Record tags one execution with its expected output directory. The worker
// fills in its own pid after spawn; this side only writes the execution
// identity.
type Record struct {
	UniqueID  string `json:"uniqueId"`
	OutputDir string `json:"outputDir"`
	Created   string `json:"created"`
}

// WriteRecord writes a cleanup record for the given execution into the
// resource file directory.
func WriteRecord(resourceFileDir string, uniqueID string, outputDir string, clock times.Clock) error {
	if err := os.MkdirAll(resourceFileDir, 0755); err != nil {
		return fmt.Errorf("unable to create resource file dir %v: %v", resourceFileDir, err)
	}

	record := Record{
		UniqueID:  uniqueID,
		OutputDir: outputDir,
		Created:   times.ToIso8601UTC(clock.Now()),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	recordPath := filepath.Join(resourceFileDir, uniqueID+".resource")
	if err = ioutil.WriteFile(recordPath, data, 0644); err != nil {
		return fmt.Errorf("unable to write resource record %v: %v", recordPath, err)
	}
	return nil
}

// ReadRecord loads a previously written cleanup record.
func ReadRecord(resourceFileDir string, uniqueID string) (*Record, error) {
	recordPath := filepath.Join(resourceFileDir, uniqueID+".resource")
	data, err := ioutil.ReadFile(recordPath)
	if err != nil {
		return nil, err
	}
	record := &Record{}
	if err = json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("resource record %v is malformed: %v", recordPath, err)
	}
	return record, nil
}
