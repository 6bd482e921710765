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

// Package log is used to initialize the logger. This package should be imported
// once, usually from main, then call Logger.
package log

import (
	"io/ioutil"
	"sync"

	"github.com/cihub/seelog"
)

const (
	// LogFile is the name of the agent log file.
	LogFile = "wps-remote-agent.log"

	// ErrorFile is the name of the agent error log file.
	ErrorFile = "errors.log"
)

// seelogDefault is the underlying seelog logger.
var seelogDefault seelog.LoggerInterface

// pkgMutex is the lock used to serialize calls to the logger.
var pkgMutex = new(sync.Mutex)

// loaded logger
var loadedLogger *T
var lock sync.RWMutex

// Logger loads the logger from the given seelog configuration file, falling
// back to the built-in default configuration when the file cannot be read.
// It returns the previously loaded version, if any exists.
func Logger(seelogConfigPath string) T {
	if !isLoaded() {
		logger := initLogger(seelogConfigPath)
		cache(logger)
	}
	return getCached()
}

func isLoaded() bool {
	lock.RLock()
	defer lock.RUnlock()
	return loadedLogger != nil
}

func cache(logger T) {
	lock.Lock()
	defer lock.Unlock()
	loadedLogger = &logger
}

func getCached() T {
	lock.RLock()
	defer lock.RUnlock()
	return *loadedLogger
}

func initLogger(seelogConfigPath string) T {
	configBytes := DefaultConfig()
	if seelogConfigPath != "" {
		if fileBytes, err := ioutil.ReadFile(seelogConfigPath); err == nil {
			configBytes = fileBytes
		}
	}
	return initLoggerFromBytes(configBytes)
}

// initLoggerFromBytes initializes the base seelog logger from the given
// config, falling back to the default config if the given one is invalid.
func initLoggerFromBytes(seelogConfig []byte) T {
	logger, err := seelog.LoggerFromConfigAsBytes(seelogConfig)
	if err != nil {
		logger, _ = seelog.LoggerFromConfigAsBytes(DefaultConfig())
	}
	seelogDefault = logger
	return withContext(logger)
}

// WithContext creates a logger that includes the given context with every log message.
func WithContext(context ...string) (contextLogger T) {
	return withContext(seelogDefault, context...)
}

func withContext(logger seelog.LoggerInterface, context ...string) (contextLogger T) {
	formatFilter := &ContextFormatFilter{Context: context}
	contextLogger = &Wrapper{Delegate: logger, Format: formatFilter, M: pkgMutex}

	// additional stack depth so that we print the calling function correctly
	// stack depth 0 would print the function in the seelog logger (e.g. seelog.Debug)
	// stack depth 1 would print the function in the wrapper (e.g. wrapper.Debug)
	// stack depth 2 prints the function calling the logger (wrapper), which is what we want.
	logger.SetAdditionalStackDepth(2)
	return contextLogger
}

// ContextFormatFilter is a filter that can add a context to the parameters of a log message.
type ContextFormatFilter struct {
	Context []string
}

// Filter adds the context at the beginning of the parameter slice.
func (f ContextFormatFilter) Filter(params ...interface{}) (newParams []interface{}) {
	newParams = make([]interface{}, len(f.Context)+len(params))
	for i, param := range f.Context {
		newParams[i] = param + " "
	}
	ctxLen := len(f.Context)
	for i, param := range params {
		newParams[ctxLen+i] = param
	}
	return newParams
}

// Filterf adds the context in front of the format string.
func (f ContextFormatFilter) Filterf(format string, params ...interface{}) (newFormat string, newParams []interface{}) {
	newFormat = ""
	for _, contextEntry := range f.Context {
		newFormat += contextEntry + " "
	}
	newFormat += format
	newParams = params
	return
}
