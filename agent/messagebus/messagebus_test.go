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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/geoserver/wps-remote-agent/agent/appconfig"
	"github.com/geoserver/wps-remote-agent/agent/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory transport for bus tests.
type fakeTransport struct {
	inbound   chan []byte
	mutex     sync.Mutex
	sent      [][]byte
	dialCount int
	closed    bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(chan []byte, 16)}
}

func (t *fakeTransport) Dial() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.dialCount++
	return nil
}

func (t *fakeTransport) IsConnected() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.dialCount > 0 && !t.closed
}

func (t *fakeTransport) Send(data []byte) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.closed {
		return fmt.Errorf("transport is closed")
	}
	t.sent = append(t.sent, data)
	return nil
}

func (t *fakeTransport) Recv() ([]byte, error) {
	data, ok := <-t.inbound
	if !ok {
		return nil, fmt.Errorf("transport is closed")
	}
	return data, nil
}

func (t *fakeTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if !t.closed {
		t.closed = true
		close(t.inbound)
	}
	return nil
}

func (t *fakeTransport) sentFrames() [][]byte {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([][]byte{}, t.sent...)
}

func (t *fakeTransport) push(t2 *testing.T, msg Message) {
	data, err := Encode(msg)
	require.NoError(t2, err)
	t.inbound <- data
}

func listeningBus(t *testing.T, tr *fakeTransport) (Bus, func()) {
	bus := NewWithTransport(context.NewMockDefault(), tr)

	listenDone := make(chan error, 1)
	start := func() {
		go func() { listenDone <- bus.Listen() }()
	}
	stop := func() {
		bus.Close()
		select {
		case err := <-listenDone:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("listen loop did not stop")
		}
	}
	start()
	return bus, stop
}

func TestListenDispatchesToRegisteredHandler(t *testing.T) {
	tr := newFakeTransport()
	bus := NewWithTransport(context.NewMockDefault(), tr)

	received := make(chan Message, 1)
	require.NoError(t, bus.RegisterHandler(KindInvite, func(msg Message) {
		received <- msg
	}))

	listenDone := make(chan error, 1)
	go func() { listenDone <- bus.Listen() }()

	tr.push(t, &InviteMessage{Originator: "orchestrator@bus"})

	select {
	case msg := <-received:
		invite, ok := msg.(*InviteMessage)
		require.True(t, ok)
		assert.Equal(t, "orchestrator@bus", invite.Originator)
	case <-time.After(5 * time.Second):
		t.Fatal("handler never invoked")
	}

	bus.Close()
	assert.NoError(t, <-listenDone)
}

func TestUnhandledKindIsIgnored(t *testing.T) {
	tr := newFakeTransport()
	bus := NewWithTransport(context.NewMockDefault(), tr)

	received := make(chan struct{}, 1)
	require.NoError(t, bus.RegisterHandler(KindInvite, func(msg Message) {
		received <- struct{}{}
	}))

	listenDone := make(chan error, 1)
	go func() { listenDone <- bus.Listen() }()

	// nothing registered for getloadavg, the loop must survive it
	tr.push(t, &GetLoadAverageMessage{Originator: "orchestrator@bus"})
	tr.push(t, &InviteMessage{Originator: "orchestrator@bus"})

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("listen loop died on unhandled kind")
	}

	bus.Close()
	assert.NoError(t, <-listenDone)
}

func TestHandlerPanicDoesNotKillListenLoop(t *testing.T) {
	tr := newFakeTransport()
	bus := NewWithTransport(context.NewMockDefault(), tr)

	require.NoError(t, bus.RegisterHandler(KindExecute, func(msg Message) {
		panic("handler blew up")
	}))
	received := make(chan struct{}, 1)
	require.NoError(t, bus.RegisterHandler(KindInvite, func(msg Message) {
		received <- struct{}{}
	}))

	listenDone := make(chan error, 1)
	go func() { listenDone <- bus.Listen() }()

	tr.push(t, &ExecuteMessage{UniqueID: "exec-1"})
	tr.push(t, &InviteMessage{Originator: "orchestrator@bus"})

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("listen loop died after handler panic")
	}

	bus.Close()
	assert.NoError(t, <-listenDone)
}

func TestSendGoesThroughSingleSender(t *testing.T) {
	tr := newFakeTransport()
	bus, stop := listeningBus(t, tr)

	require.NoError(t, bus.Send(&ErrorMessage{Destination: "requester@bus", Text: "failed"}))
	require.NoError(t, bus.Send(&LoadAverageMessage{Destination: "requester@bus"}))

	var frames [][]byte
	for i := 0; i < 200; i++ {
		if frames = tr.sentFrames(); len(frames) >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Len(t, frames, 2)
	stop()

	first, err := Decode(frames[0])
	require.NoError(t, err)
	assert.Equal(t, KindError, first.Kind())
	second, err := Decode(frames[1])
	require.NoError(t, err)
	assert.Equal(t, KindLoadAverage, second.Kind())
}

func TestSendFailsWhenOutboundQueueIsFull(t *testing.T) {
	config := appconfig.DefaultConfig()
	config.Bus.OutboundQueueLimit = 2
	bus := NewWithTransport(context.NewMockDefaultWithConfig(config), newFakeTransport())

	// no listen loop running, so nothing drains the queue
	require.NoError(t, bus.Send(&ErrorMessage{Destination: "requester@bus", Text: "one"}))
	require.NoError(t, bus.Send(&ErrorMessage{Destination: "requester@bus", Text: "two"}))
	assert.Error(t, bus.Send(&ErrorMessage{Destination: "requester@bus", Text: "three"}))
}

func TestSendAfterCloseFails(t *testing.T) {
	tr := newFakeTransport()
	bus, stop := listeningBus(t, tr)
	stop()

	assert.Error(t, bus.Send(&ErrorMessage{Destination: "requester@bus", Text: "failed"}))
}

func TestRegisterHandlerRejectsDuplicates(t *testing.T) {
	bus := NewWithTransport(context.NewMockDefault(), newFakeTransport())

	assert.NoError(t, bus.RegisterHandler(KindInvite, func(msg Message) {}))
	assert.Error(t, bus.RegisterHandler(KindInvite, func(msg Message) {}))
}

func TestMalformedInboundFrameIsIgnored(t *testing.T) {
	tr := newFakeTransport()
	bus := NewWithTransport(context.NewMockDefault(), tr)

	received := make(chan struct{}, 1)
	require.NoError(t, bus.RegisterHandler(KindInvite, func(msg Message) {
		received <- struct{}{}
	}))

	listenDone := make(chan error, 1)
	go func() { listenDone <- bus.Listen() }()

	tr.inbound <- []byte("this is not an envelope")
	tr.push(t, &InviteMessage{Originator: "orchestrator@bus"})

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("listen loop died on malformed frame")
	}

	bus.Close()
	assert.NoError(t, <-listenDone)
}
