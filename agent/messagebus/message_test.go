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

package messagebus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWrapsPayloadInEnvelope(t *testing.T) {
	data, err := Encode(&ExecuteMessage{
		UniqueID:   "exec-1",
		Originator: "requester@bus",
		Params:     json.RawMessage(`{"interval":10}`),
	})
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.NotEmpty(t, env.MessageID)
	assert.Equal(t, KindExecute, env.Topic)

	msg, err := Decode(data)
	require.NoError(t, err)
	execute, ok := msg.(*ExecuteMessage)
	require.True(t, ok)
	assert.Equal(t, "exec-1", execute.UniqueID)
	assert.Equal(t, "requester@bus", execute.Originator)
	assert.JSONEq(t, `{"interval":10}`, string(execute.Params))
}

func TestEncodeAssignsFreshMessageIDs(t *testing.T) {
	first, err := Encode(&InviteMessage{Originator: "a@bus"})
	require.NoError(t, err)
	second, err := Encode(&InviteMessage{Originator: "a@bus"})
	require.NoError(t, err)

	var envFirst, envSecond envelope
	require.NoError(t, json.Unmarshal(first, &envFirst))
	require.NoError(t, json.Unmarshal(second, &envSecond))
	assert.NotEqual(t, envFirst.MessageID, envSecond.MessageID)
}

func TestDecodeRejectsUnknownTopic(t *testing.T) {
	_, err := Decode([]byte(`{"messageId":"m1","topic":"gossip","payload":{}}`))
	assert.Error(t, err)
}

func TestDecodeRejectsMalformedEnvelope(t *testing.T) {
	_, err := Decode([]byte(`not json at all`))
	assert.Error(t, err)
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	_, err := Decode([]byte(`{"messageId":"m1","topic":"execute","payload":["not","an","object"]}`))
	assert.Error(t, err)
}

func TestErrorMessageOmitsEmptyUniqueID(t *testing.T) {
	payload, err := json.Marshal(&ErrorMessage{Destination: "requester@bus", Text: "failed"})
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "uniqueId")
}
