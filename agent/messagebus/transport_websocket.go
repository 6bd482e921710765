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
	"github.com/gorilla/websocket"
)

// websocketTransport carries bus envelopes over a websocket connection.
type websocketTransport struct {
	context     context.T
	address     string
	dialRetries uint64
	dialer      *websocket.Dialer

	conn       *websocket.Conn
	connected  bool
	connMutex  sync.RWMutex
	writeMutex sync.Mutex
}

func newWebsocketTransport(ctx context.T, config appconfig.BusConfig) *websocketTransport {
	return &websocketTransport{
		context:     ctx.With("[WebsocketTransport]"),
		address:     config.Address,
		dialRetries: config.DialRetries,
		dialer:      websocket.DefaultDialer,
	}
}

func (t *websocketTransport) Dial() error {
	log := t.context.Log()

	operation := func() error {
		log.Infof("Opening websocket connection to: %s", t.address)
		conn, _, err := t.dialer.Dial(t.address, nil)
		if err != nil {
			log.Warnf("Failed to dial websocket: %s", err)
			return err
		}
		t.connMutex.Lock()
		t.conn = conn
		t.connected = true
		t.connMutex.Unlock()
		log.Infof("Successfully opened websocket connection to: %s", t.address)
		return nil
	}
	return backoff.Retry(operation, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), t.dialRetries))
}

func (t *websocketTransport) IsConnected() bool {
	t.connMutex.RLock()
	defer t.connMutex.RUnlock()
	return t.connected
}

func (t *websocketTransport) Send(data []byte) error {
	t.connMutex.RLock()
	conn := t.conn
	t.connMutex.RUnlock()
	if conn == nil {
		return errors.New("websocket is not connected")
	}

	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.markDisconnected()
		return err
	}
	return nil
}

func (t *websocketTransport) Recv() ([]byte, error) {
	t.connMutex.RLock()
	conn := t.conn
	t.connMutex.RUnlock()
	if conn == nil {
		return nil, errors.New("websocket is not connected")
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.markDisconnected()
		return nil, err
	}
	return data, nil
}

func (t *websocketTransport) Close() error {
	t.connMutex.Lock()
	defer t.connMutex.Unlock()
	t.connected = false
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

func (t *websocketTransport) markDisconnected() {
	t.connMutex.Lock()
	t.connected = false
	t.connMutex.Unlock()
}
