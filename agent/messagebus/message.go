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
	"fmt"

	"github.com/twinj/uuid"
)

// Kind identifies a bus message type.
type Kind string

const (
	// KindInvite is sent by the remote endpoint to ask the agent to
	// announce its service.
	KindInvite Kind = "invite"

	// KindExecute carries a job execution request.
	KindExecute Kind = "execute"

	// KindGetLoadAverage is a capacity probe.
	KindGetLoadAverage Kind = "getloadavg"

	// KindRegister announces the service and its parameter schemas.
	KindRegister Kind = "register"

	// KindLoadAverage is the reply to a capacity probe.
	KindLoadAverage Kind = "loadavg"

	// KindError reports a failed job to its originator.
	KindError Kind = "error"
)

// Message is a bus independent message.
type Message interface {
	Kind() Kind
}

// InviteMessage asks this agent to announce itself to the originator.
type InviteMessage struct {
	Originator string `json:"originator"`
}

// Kind returns the message kind.
func (*InviteMessage) Kind() Kind { return KindInvite }

// ExecuteMessage carries one job execution request.
type ExecuteMessage struct {
	UniqueID   string          `json:"uniqueId"`
	Originator string          `json:"originator"`
	Params     json.RawMessage `json:"params,omitempty"`
}

// Kind returns the message kind.
func (*ExecuteMessage) Kind() Kind { return KindExecute }

// GetLoadAverageMessage probes this node's capacity.
type GetLoadAverageMessage struct {
	Originator string `json:"originator"`
}

// Kind returns the message kind.
func (*GetLoadAverageMessage) Kind() Kind { return KindGetLoadAverage }

// RegisterMessage announces the service name, namespace, description and
// both parameter schemas in the bus interchange form.
type RegisterMessage struct {
	Destination  string          `json:"destination"`
	Service      string          `json:"service"`
	Namespace    string          `json:"namespace"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"inputSchema,omitempty"`
	OutputSchema json.RawMessage `json:"outputSchema,omitempty"`
}

// Kind returns the message kind.
func (*RegisterMessage) Kind() Kind { return KindRegister }

// LoadAverageOutput is one labeled value of a capacity reply.
type LoadAverageOutput struct {
	Value       float64 `json:"value"`
	Description string  `json:"description"`
}

// LoadAverageMessage replies to a capacity probe with labeled load and
// memory percentages.
type LoadAverageMessage struct {
	Destination string                       `json:"destination"`
	Outputs     map[string]LoadAverageOutput `json:"outputs"`
}

// Kind returns the message kind.
func (*LoadAverageMessage) Kind() Kind { return KindLoadAverage }

// ErrorMessage reports a job failure to the given destination. UniqueID is
// empty when the failed job could not be tied to an execution id.
type ErrorMessage struct {
	Destination string `json:"destination"`
	Text        string `json:"text"`
	UniqueID    string `json:"uniqueId,omitempty"`
}

// Kind returns the message kind.
func (*ErrorMessage) Kind() Kind { return KindError }

// envelope is the wire form of a message.
type envelope struct {
	MessageID string          `json:"messageId"`
	Topic     Kind            `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
}

// Encode wraps a message into its wire envelope.
func Encode(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		MessageID: uuid.NewV4().String(),
		Topic:     msg.Kind(),
		Payload:   payload,
	})
}

// Decode unwraps a wire envelope into a typed message.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %v", err)
	}

	var msg Message
	switch env.Topic {
	case KindInvite:
		msg = &InviteMessage{}
	case KindExecute:
		msg = &ExecuteMessage{}
	case KindGetLoadAverage:
		msg = &GetLoadAverageMessage{}
	case KindRegister:
		msg = &RegisterMessage{}
	case KindLoadAverage:
		msg = &LoadAverageMessage{}
	case KindError:
		msg = &ErrorMessage{}
	default:
		return nil, fmt.Errorf("unexpected topic %q", env.Topic)
	}
	if err := json.Unmarshal(env.Payload, msg); err != nil {
		return nil, fmt.Errorf("malformed %v payload: %v", env.Topic, err)
	}
	return msg, nil
}
