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

// Package messagebus delivers typed inbound events to registered handlers
// and accepts typed outbound messages. Outbound messages go through a
// single queue whose consumer owns the connection, so concurrent
// supervision tasks never race on the underlying transport.
package messagebus

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/geoserver/wps-remote-agent/agent/appconfig"
	"github.com/geoserver/wps-remote-agent/agent/context"
)

// ConnectionState describes the bus connection.
type ConnectionState string

const (
	// Connected means the transport currently holds a live connection.
	Connected ConnectionState = "connected"

	// Disconnected means the transport has no live connection.
	Disconnected ConnectionState = "disconnected"
)

// HandlerFunc handles one inbound message. Handlers are invoked
// synchronously from the listen loop and must not block beyond launching
// asynchronous work. A handler must contain its own failures; the
// dispatcher has no generic error path.
type HandlerFunc func(msg Message)

// Bus is the capability interface of the message transport.
type Bus interface {
	// RegisterHandler maps an inbound message kind to a handler.
	// Registration must occur before Listen is called.
	RegisterHandler(kind Kind, handler HandlerFunc) error

	// Listen dials the transport and blocks dispatching inbound messages
	// until the bus is closed.
	Listen() error

	// State reports the connection state.
	State() ConnectionState

	// Reconnect re-establishes the transport connection.
	Reconnect() error

	// Send enqueues an outbound message. Transmission failures are logged
	// by the sender, not returned here; Send only fails when the outbound
	// queue is full or the bus is closed.
	Send(msg Message) error

	// Close shuts down the sender and the transport.
	Close()
}

// transport is a concrete connection implementation. It is selected at
// startup via explicit configuration, never via runtime reflection.
type transport interface {
	Dial() error
	IsConnected() bool
	Send(data []byte) error
	Recv() ([]byte, error)
	Close() error
}

type serviceBus struct {
	context    context.T
	transport  transport
	handlers   map[Kind]HandlerFunc
	outbound   *queue.Queue
	queueLimit int64
	listening  bool
	mutex      sync.Mutex
	closeOnce  sync.Once
}

// New creates a bus using the transport selected by the agent configuration.
func New(ctx context.T) (Bus, error) {
	busConfig := ctx.AppConfig().Bus
	var tr transport
	switch busConfig.Kind {
	case appconfig.BusKindWebsocket:
		tr = newWebsocketTransport(ctx, busConfig)
	case appconfig.BusKindMangos:
		tr = newMangosTransport(ctx, busConfig)
	default:
		return nil, fmt.Errorf("unsupported bus kind %q", busConfig.Kind)
	}
	return NewWithTransport(ctx, tr), nil
}

// NewWithTransport creates a bus over the given transport.
func NewWithTransport(ctx context.T, tr transport) Bus {
	limit := ctx.AppConfig().Bus.OutboundQueueLimit
	return &serviceBus{
		context:    ctx.With("[MessageBus]"),
		transport:  tr,
		handlers:   make(map[Kind]HandlerFunc),
		outbound:   queue.New(limit),
		queueLimit: limit,
	}
}

func (b *serviceBus) RegisterHandler(kind Kind, handler HandlerFunc) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.listening {
		return fmt.Errorf("cannot register handler for %v: bus is already listening", kind)
	}
	if _, exists := b.handlers[kind]; exists {
		return fmt.Errorf("handler for %v already registered", kind)
	}
	b.handlers[kind] = handler
	return nil
}

func (b *serviceBus) Listen() error {
	log := b.context.Log()

	b.mutex.Lock()
	b.listening = true
	b.mutex.Unlock()

	if err := b.transport.Dial(); err != nil {
		return fmt.Errorf("unable to connect bus: %v", err)
	}

	// single consumer owning the connection for all outbound traffic
	go b.sender()

	log.Info("Start listening on bus")
	for {
		data, err := b.transport.Recv()
		if err != nil {
			if b.outbound.Disposed() {
				// closed on purpose
				return nil
			}
			log.Errorf("bus receive failed: %v, reconnecting", err)
			if err = b.Reconnect(); err != nil {
				return fmt.Errorf("unable to reconnect bus: %v", err)
			}
			continue
		}

		msg, err := Decode(data)
		if err != nil {
			log.Error("inbound message not valid, ignoring: ", err)
			continue
		}
		b.dispatch(msg)
	}
}

// dispatch invokes the handler registered for the message kind. A panic in
// a handler must never terminate the listen loop serving the other
// handlers.
func (b *serviceBus) dispatch(msg Message) {
	log := b.context.Log()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%v handler panic: %v", msg.Kind(), r)
			log.Errorf("Stacktrace:\n%s", debug.Stack())
		}
	}()

	b.mutex.Lock()
	handler, found := b.handlers[msg.Kind()]
	b.mutex.Unlock()
	if !found {
		log.Debugf("no handler registered for %v, ignoring", msg.Kind())
		return
	}
	handler(msg)
}

func (b *serviceBus) State() ConnectionState {
	if b.transport.IsConnected() {
		return Connected
	}
	return Disconnected
}

func (b *serviceBus) Reconnect() error {
	return b.transport.Dial()
}

func (b *serviceBus) Send(msg Message) error {
	// the length check is racy under concurrent senders, the limit is a
	// soft bound keeping a dead connection from growing the queue forever
	if b.queueLimit > 0 && b.outbound.Len() >= b.queueLimit {
		return fmt.Errorf("outbound queue limit %v reached, rejecting %v message", b.queueLimit, msg.Kind())
	}
	if err := b.outbound.Put(msg); err != nil {
		return fmt.Errorf("unable to enqueue %v message: %v", msg.Kind(), err)
	}
	return nil
}

// sender drains the outbound queue and serializes transmission over the
// shared connection.
func (b *serviceBus) sender() {
	log := b.context.Log()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("bus sender panic: %v", r)
			log.Errorf("Stacktrace:\n%s", debug.Stack())
		}
	}()

	for {
		items, err := b.outbound.Get(1)
		if err != nil {
			// queue disposed, bus is closing
			return
		}
		for _, item := range items {
			b.transmit(item.(Message))
		}
	}
}

// transmit sends one message, attempting a single inline reconnect-and-retry.
// Further failure is accepted as data loss for that message.
func (b *serviceBus) transmit(msg Message) {
	log := b.context.Log()

	data, err := Encode(msg)
	if err != nil {
		log.Errorf("unable to encode %v message: %v", msg.Kind(), err)
		return
	}

	if !b.transport.IsConnected() {
		if err = b.Reconnect(); err != nil {
			log.Infof("[Bus Disconnected]: could not send %v message: %v", msg.Kind(), err)
			return
		}
	}

	if err = b.transport.Send(data); err != nil {
		log.Infof("[Bus Disconnected]: send %v failed: %v, reconnecting", msg.Kind(), err)
		if err = b.Reconnect(); err == nil {
			err = b.transport.Send(data)
		}
		if err != nil {
			log.Errorf("dropping %v message after reconnect attempt: %v", msg.Kind(), err)
		}
	}
}

func (b *serviceBus) Close() {
	b.closeOnce.Do(func() {
		b.outbound.Dispose()
		if err := b.transport.Close(); err != nil {
			b.context.Log().Debugf("bus close: %v", err)
		}
	})
}
