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

// Package servicedef loads the static description of the processing service
// an agent instance serves. The definition is immutable after load.
package servicedef

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Jeffail/gabs"
	"gopkg.in/ini.v1"
)

const defaultLoadAverageScanMinutes = 15

// ParamField is a single key/value entry of a parameter schema section.
type ParamField struct {
	Key   string
	Value string
}

// ParamSection is one named parameter schema section, with its fields in
// file order.
type ParamSection struct {
	Name   string
	Fields []ParamField
}

// ServiceDefinition describes the job type this agent instance serves.
// Created once at startup, never mutated.
type ServiceDefinition struct {
	Service     string
	Namespace   string
	Description string
	Active      bool

	// OutputDir is where workers write their outputs, usually below the
	// shared execution dir.
	OutputDir string

	// MaxRunningTime bounds a worker's lifetime. A worker exceeding it is
	// forcibly killed by the supervisor watchdog.
	MaxRunningTime time.Duration

	// ProcessBlacklist holds process name patterns that, when matched by a
	// running process, make the agent report itself as saturated.
	ProcessBlacklist []string

	// LoadAverageScanMinutes is the resource sampling period.
	LoadAverageScanMinutes int

	// Inputs and Outputs are the parameter schema sections in file order.
	Inputs  []ParamSection
	Outputs []ParamSection
}

// Load reads a service definition from the given ini file.
func Load(path string) (*ServiceDefinition, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load service config %v: %v", path, err)
	}

	section := file.Section(ini.DefaultSection)
	def := &ServiceDefinition{
		Service:                section.Key("service").String(),
		Namespace:              section.Key("namespace").String(),
		Description:            section.Key("description").String(),
		Active:                 strings.EqualFold(section.Key("active").String(), "true"),
		OutputDir:              section.Key("output_dir").String(),
		MaxRunningTime:         time.Duration(section.Key("max_running_time_seconds").MustInt64(0)) * time.Second,
		LoadAverageScanMinutes: section.Key("load_average_scan_minutes").MustInt(defaultLoadAverageScanMinutes),
	}
	if def.Service == "" {
		return nil, fmt.Errorf("service config %v has no service name", path)
	}

	// the blacklist is a JSON list embedded in the ini value; an absent or
	// malformed value means no blacklist
	if blacklistValue := section.Key("process_blacklist").Value(); blacklistValue != "" {
		if err := json.Unmarshal([]byte(blacklistValue), &def.ProcessBlacklist); err != nil {
			def.ProcessBlacklist = nil
		}
	}

	for _, fileSection := range file.Sections() {
		name := fileSection.Name()
		if name == ini.DefaultSection {
			continue
		}
		lowered := strings.ToLower(name)
		if strings.Contains(lowered, "input") || strings.Contains(lowered, "const") {
			def.Inputs = append(def.Inputs, paramSection(fileSection))
		} else if strings.Contains(lowered, "output") {
			def.Outputs = append(def.Outputs, paramSection(fileSection))
		}
	}
	return def, nil
}

// paramSection copies a schema section with raw, uninterpolated values.
// Interpolation values are produced only for the worker, which knows the
// unique execution id.
func paramSection(section *ini.Section) ParamSection {
	result := ParamSection{Name: section.Name()}
	for _, key := range section.Keys() {
		result.Fields = append(result.Fields, ParamField{Key: key.Name(), Value: key.Value()})
	}
	return result
}

// InterchangeInputs renders the input parameter schema in the bus
// interchange form.
func (def *ServiceDefinition) InterchangeInputs() []byte {
	return interchange(def.Inputs)
}

// InterchangeOutputs renders the output parameter schema in the bus
// interchange form.
func (def *ServiceDefinition) InterchangeOutputs() []byte {
	return interchange(def.Outputs)
}

// interchange renders schema sections as a JSON array so section order
// survives the trip over the bus.
func interchange(sections []ParamSection) []byte {
	container := gabs.New()
	container.Array("sections")
	for _, section := range sections {
		item := gabs.New()
		item.Set(section.Name, "name")
		for _, field := range section.Fields {
			item.Set(field.Value, "fields", field.Key)
		}
		container.ArrayAppend(item.Data(), "sections")
	}
	return []byte(container.String())
}
