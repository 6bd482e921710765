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

package supervisor

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/geoserver/wps-remote-agent/agent/log"
)

// Workers tag lines of their output with the originator of the request
// they are serving. Later matches overwrite earlier ones so the last
// complete tagging wins.
var (
	uidRegexp = regexp.MustCompile(`(?i)<UID>(.*?)</UID>`)
	jidRegexp = regexp.MustCompile(`(?i)<JID>(.*?)</JID>`)
	msgRegexp = regexp.MustCompile(`(?i)<MSG>(.*?)</MSG>`)
)

// suppressedMarker is emitted by a worker that has already reported its
// own failure upstream. The marked line carries tags that must not be
// captured, otherwise the supervisor would report the same failure twice.
const suppressedMarker = "send error msg complete"

// recoveryState holds the originator captured from the worker's output,
// used to route a failure report when the worker dies.
type recoveryState struct {
	uid string
	jid string
	msg string
}

// complete reports whether the state carries enough to address an error
// message. Both identifiers are required; a partial capture is useless.
func (s *recoveryState) complete() bool {
	return s.uid != "" && s.jid != ""
}

// scanWorkerOutput consumes the worker's combined output stream line by
// line until end-of-stream, capturing originator tags along the way. When
// redirectToLog is set every line is also forwarded to the agent log.
func scanWorkerOutput(log log.T, output io.Reader, redirectToLog bool) *recoveryState {
	state := &recoveryState{}

	scanner := bufio.NewScanner(output)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if redirectToLog {
			log.Debug("[SERVICE] " + strings.TrimSpace(line))
		}
		if strings.Contains(strings.ToLower(line), suppressedMarker) {
			continue
		}

		uidMatch := uidRegexp.FindStringSubmatch(line)
		jidMatch := jidRegexp.FindStringSubmatch(line)
		if uidMatch != nil && jidMatch != nil {
			state.uid = uidMatch[1]
			state.jid = jidMatch[1]
			state.msg = ""
			if msgMatch := msgRegexp.FindStringSubmatch(line); msgMatch != nil {
				state.msg = msgMatch[1]
			}
		} else if uidMatch != nil || jidMatch != nil {
			// a line with only one of the two identifiers cannot be used
			// for routing and is discarded
			log.Debugf("discarding partially tagged output line: %v", strings.TrimSpace(line))
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warnf("worker output stream failed: %v", err)
	}
	return state
}
