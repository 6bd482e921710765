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
	"strings"
	"testing"

	"github.com/geoserver/wps-remote-agent/agent/log"
	"github.com/stretchr/testify/assert"
)

func TestScanCapturesOriginatorTags(t *testing.T) {
	output := strings.Join([]string{
		"starting up",
		"working on request <UID>exec-1</UID> for <JID>orchestrator@bus/wps</JID>",
		"done",
	}, "\n")

	state := scanWorkerOutput(log.NewMockLog(), strings.NewReader(output), false)

	assert.True(t, state.complete())
	assert.Equal(t, "exec-1", state.uid)
	assert.Equal(t, "orchestrator@bus/wps", state.jid)
	assert.Empty(t, state.msg)
}

func TestScanTagsAreCaseInsensitive(t *testing.T) {
	output := "<uid>exec-2</uid><Jid>someone@bus</Jid><msg>out of memory</msg>\n"

	state := scanWorkerOutput(log.NewMockLog(), strings.NewReader(output), false)

	assert.Equal(t, "exec-2", state.uid)
	assert.Equal(t, "someone@bus", state.jid)
	assert.Equal(t, "out of memory", state.msg)
}

func TestScanLastCompleteTaggingWins(t *testing.T) {
	output := strings.Join([]string{
		"<UID>first</UID><JID>a@bus</JID><MSG>early failure</MSG>",
		"<UID>second</UID><JID>b@bus</JID>",
	}, "\n")

	state := scanWorkerOutput(log.NewMockLog(), strings.NewReader(output), false)

	assert.Equal(t, "second", state.uid)
	assert.Equal(t, "b@bus", state.jid)
	// the message of the earlier tagging must not leak into the later one
	assert.Empty(t, state.msg)
}

func TestScanDiscardsPartialTagging(t *testing.T) {
	output := "<UID>lonely</UID> no jid on this line\n"

	state := scanWorkerOutput(log.NewMockLog(), strings.NewReader(output), false)

	assert.False(t, state.complete())
	assert.Empty(t, state.uid)
	assert.Empty(t, state.jid)
}

func TestScanSuppressedMarkerSkipsLine(t *testing.T) {
	output := "<UID>exec-3</UID><JID>c@bus</JID> Send Error Msg Complete\n"

	state := scanWorkerOutput(log.NewMockLog(), strings.NewReader(output), false)

	assert.False(t, state.complete())
}

func TestScanSuppressedMarkerKeepsOtherLines(t *testing.T) {
	output := strings.Join([]string{
		"<UID>old</UID><JID>old@bus</JID> send error msg complete",
		"<UID>kept</UID><JID>kept@bus</JID>",
	}, "\n")

	state := scanWorkerOutput(log.NewMockLog(), strings.NewReader(output), false)

	assert.Equal(t, "kept", state.uid)
	assert.Equal(t, "kept@bus", state.jid)
}

func TestScanRedirectsOutputToLog(t *testing.T) {
	mockLog := log.NewMockLog()

	scanWorkerOutput(mockLog, strings.NewReader("hello worker\n"), true)

	mockLog.AssertCalled(t, "Debug", []interface{}{"[SERVICE] hello worker"})
}
