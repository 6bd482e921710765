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
	"github.com/stretchr/testify/mock"
)

// MockBus mocks the Bus interface.
type MockBus struct {
	mock.Mock
}

// NewMockBus returns a connected mock bus that accepts handler
// registration and records sent messages.
func NewMockBus() *MockBus {
	bus := new(MockBus)
	bus.On("RegisterHandler", mock.Anything, mock.Anything).Return(nil)
	bus.On("State").Return(Connected)
	bus.On("Reconnect").Return(nil)
	return bus
}

// RegisterHandler mocks the RegisterHandler function.
func (m *MockBus) RegisterHandler(kind Kind, handler HandlerFunc) error {
	ret := m.Called(kind, handler)
	return ret.Error(0)
}

// Listen mocks the Listen function.
func (m *MockBus) Listen() error {
	ret := m.Called()
	return ret.Error(0)
}

// State mocks the State function.
func (m *MockBus) State() ConnectionState {
	ret := m.Called()
	return ret.Get(0).(ConnectionState)
}

// Reconnect mocks the Reconnect function.
func (m *MockBus) Reconnect() error {
	ret := m.Called()
	return ret.Error(0)
}

// Send mocks the Send function.
func (m *MockBus) Send(msg Message) error {
	ret := m.Called(msg)
	return ret.Error(0)
}

// Close mocks the Close function.
func (m *MockBus) Close() {
	m.Called()
}
