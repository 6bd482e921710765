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

package context

import (
	"github.com/geoserver/wps-remote-agent/agent/appconfig"
	"github.com/geoserver/wps-remote-agent/agent/log"
)

// NewMockDefault returns a context backed by a mocked logger and the default
// agent configuration, for use in tests.
func NewMockDefault() T {
	return Default(log.NewMockLog(), appconfig.DefaultConfig())
}

// NewMockDefaultWithConfig returns a context backed by a mocked logger and
// the given agent configuration, for use in tests.
func NewMockDefaultWithConfig(config appconfig.AgentConfig) T {
	return Default(log.NewMockLog(), config)
}
