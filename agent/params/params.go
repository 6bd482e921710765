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

// Package params serializes execution requests to parameter files. The
// parameter file is the handoff contract to the worker process and the
// last-resort record of a job's originator: it must stay readable until
// the supervisor has resolved the worker's outcome.
package params

import (
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/Jeffail/gabs"
	"github.com/geoserver/wps-remote-agent/agent/messagebus"
)

// tempFilePattern matches the file naming the external tooling expects.
const tempFilePattern = "wps_params_*.tmp"

// Serialize writes the execution request to a uniquely named temporary
// file and returns its path.
func Serialize(msg *messagebus.ExecuteMessage) (string, error) {
	container := gabs.New()
	container.Set(msg.UniqueID, "uniqueId")
	container.Set(msg.Originator, "originator")
	if len(msg.Params) > 0 {
		parsed, err := gabs.ParseJSON(msg.Params)
		if err != nil {
			return "", fmt.Errorf("request %v carries malformed params: %v", msg.UniqueID, err)
		}
		container.Set(parsed.Data(), "params")
	}

	file, err := ioutil.TempFile("", tempFilePattern)
	if err != nil {
		return "", fmt.Errorf("unable to create parameter file: %v", err)
	}
	defer file.Close()

	if _, err = file.WriteString(container.String()); err != nil {
		return "", fmt.Errorf("unable to write parameter file %v: %v", file.Name(), err)
	}
	return file.Name(), nil
}

// Deserialize restores an execution request from a parameter file.
func Deserialize(path string) (*messagebus.ExecuteMessage, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read parameter file %v: %v", path, err)
	}

	container, err := gabs.ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parameter file %v is not valid JSON: %v", path, err)
	}

	msg := &messagebus.ExecuteMessage{}
	if uniqueID, ok := container.Path("uniqueId").Data().(string); ok {
		msg.UniqueID = uniqueID
	}
	if originator, ok := container.Path("originator").Data().(string); ok {
		msg.Originator = originator
	}
	if container.Exists("params") {
		rawParams, err := json.Marshal(container.Path("params").Data())
		if err == nil {
			msg.Params = rawParams
		}
	}
	return msg, nil
}
