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
	"errors"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/geoserver/wps-remote-agent/agent/appconfig"
	"github.com/geoserver/wps-remote-agent/agent/context"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pair"
	_ "go.nanomsg.org/mangos/v3/transport/ipc"
	_ "go.nanomsg.org/mangos/v3/transport/tcp"
)

// mangosTransport carries bus envelopes over a mangos pair socket, for
// deployments where the remote endpoint is colocated and reachable over
// ipc:// or tcp://.
type mangosTransport struct {
	context     context.T
	address     string
	dialRetries uint64

	socket    mangos.Socket
	connected bool
	mutex     sync.RWMutex
}

func newMangosTransport(ctx context.T, config appconfig.BusConfig) *mangosTransport {
	return &mangosTransport{
		context:     ctx.With("[MangosTransport]"),
		address:     config.Address,
		dialRetries: config.DialRetries,
	}
}

func (t *mangosTransport) Dial() error {
	log := t.context.Log()

	operation := func() error {
		socket, err := pair.NewSocket()
		if err != nil {
			return err
		}
		if err = socket.Dial(t.address); err != nil {
			log.Warnf("Failed to dial %s: %s", t.address, err)
			_ = socket.Close()
			return err
		}
		t.mutex.Lock()
		if t.socket != nil {
			_ = t.socket.Close()
		}
		t.socket = socket
		t.connected = true
		t.mutex.Unlock()
		log.Infof("Connected pair socket to: %s", t.address)
		return nil
	}
	return backoff.Retry(operation, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), t.dialRetries))
}

func (t *mangosTransport) IsConnected() bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.connected
}

func (t *mangosTransport) Send(data []byte) error {
	t.mutex.RLock()
	socket := t.socket
	t.mutex.RUnlock()
	if socket == nil {
		return errors.New("pair socket is not connected")
	}

	if err := socket.Send(data); err != nil {
		t.markDisconnected()
		return err
	}
	return nil
}

func (t *mangosTransport) Recv() ([]byte, error) {
	t.mutex.RLock()
	socket := t.socket
	t.mutex.RUnlock()
	if socket == nil {
		return nil, errors.New("pair socket is not connected")
	}

	data, err := socket.Recv()
	if err != nil {
		t.markDisconnected()
		return nil, err
	}
	return data, nil
}

func (t *mangosTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.connected = false
	if t.socket == nil {
		return nil
	}
	return t.socket.Close()
}

func (t *mangosTransport) markDisconnected() {
	t.mutex.Lock()
	t.connected = false
	t.mutex.Unlock()
}
