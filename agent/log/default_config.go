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

// defaultConfig helps build the agent seelog configuration.
// This can be overridden by passing a custom seelog configuration file.

package log

import (
	"path/filepath"
)

// DefaultLogDir is the directory agent log files are written to when no
// custom seelog configuration is supplied.
const DefaultLogDir = "/var/log/wps-remote-agent"

// DefaultConfig returns the built-in seelog configuration.
func DefaultConfig() []byte {
	return loadLog(DefaultLogDir, LogFile)
}

func loadLog(defaultLogDir string, logFile string) []byte {
	var logFilePath, errorFilePath string

	logFilePath = filepath.Join(defaultLogDir, logFile)
	errorFilePath = filepath.Join(defaultLogDir, ErrorFile)

	logConfig := `
<seelog type="adaptive" mininterval="2000000" maxinterval="100000000" critmsgcount="500" minlevel="debug">
    <exceptions>
        <exception filepattern="test*" minlevel="error"/>
    </exceptions>
    <outputs formatid="all">
        <console formatid="all"/>
        `
	logConfig += `<file path="` + logFilePath + `"/>`
	logConfig += `
		<filter levels="error,critical" formatid="fmterror">
		`
	logConfig += `<file path="` + errorFilePath + `"/>`
	logConfig += `
        </filter>
    </outputs>
    <formats>
        <format id="fmterror" format="%Date %Time %LEVEL [%FuncShort @ %File.%Line] %Msg%n"/>
        <format id="all" format="%Date %Time %LEVEL [%FuncShort @ %File.%Line] %Msg%n"/>
    </formats>
</seelog>
`
	return []byte(logConfig)
}
