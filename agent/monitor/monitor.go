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

// Package monitor contains the background resource sampler that backs
// capacity queries with a smoothed view of node load.
package monitor

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/carlescere/scheduler"
	"github.com/geoserver/wps-remote-agent/agent/context"
	ps "github.com/mitchellh/go-ps"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// windowSize is the number of samples retained for smoothing.
const windowSize = 4

// Sampler exposes the latest smoothed resource values plus instantaneous
// readings and the blacklist predicate. The smoothed values are read
// without synchronization with one another; staleness up to one sampling
// interval is acceptable.
type Sampler interface {
	// LatestLoadPercent returns the smoothed CPU load percentage, 0 when
	// no sample has been taken yet.
	LatestLoadPercent() float64

	// LatestMemoryPercent returns the smoothed memory usage percentage, 0
	// when no sample has been taken yet.
	LatestMemoryPercent() float64

	// InstantLoadPercent reads one instantaneous CPU load sample.
	InstantLoadPercent() (float64, error)

	// InstantMemoryPercent reads one instantaneous memory usage sample.
	InstantMemoryPercent() (float64, error)

	// IsBlacklistedProcessRunning reports whether any running process
	// matches one of the given name patterns.
	IsBlacklistedProcessRunning(patterns []string) bool
}

// ResourceMonitor periodically samples CPU load and memory usage on its
// own schedule, independent of message traffic.
type ResourceMonitor struct {
	context     context.T
	scanMinutes int
	job         *scheduler.Job

	cpuWindow []float64
	memWindow []float64
	mutex     sync.RWMutex

	// sampling functions, replaceable in tests
	cpuPercent func() (float64, error)
	memPercent func() (float64, error)
	processes  func() ([]ps.Process, error)
}

// NewResourceMonitor creates a sampler that scans every scanMinutes minutes.
func NewResourceMonitor(ctx context.T, scanMinutes int) *ResourceMonitor {
	return &ResourceMonitor{
		context:     ctx.With("[ResourceMonitor]"),
		scanMinutes: scanMinutes,
		cpuPercent:  instantCPUPercent,
		memPercent:  instantMemoryPercent,
		processes:   ps.Processes,
	}
}

// Start launches the periodic sampling job.
func (m *ResourceMonitor) Start() error {
	job, err := scheduler.Every(m.scanMinutes).Minutes().Run(m.sample)
	if err != nil {
		return fmt.Errorf("unable to schedule resource sampling job: %v", err)
	}
	m.job = job
	return nil
}

// Stop terminates the periodic sampling job.
func (m *ResourceMonitor) Stop() {
	if m.job != nil {
		m.job.Quit <- true
	}
}

// sample reads both gauges and appends the successful readings to their
// windows. A failed reading is skipped, not recorded as zero, so the
// smoothed mean only ever reflects real samples.
func (m *ResourceMonitor) sample() {
	log := m.context.Log()

	loadPercent, loadErr := m.cpuPercent()
	if loadErr != nil {
		log.Warnf("CPU load sampling failed: %v", loadErr)
	}
	memoryPercent, memErr := m.memPercent()
	if memErr != nil {
		log.Warnf("memory sampling failed: %v", memErr)
	}

	m.mutex.Lock()
	if loadErr == nil {
		m.cpuWindow = appendBounded(m.cpuWindow, loadPercent)
	}
	if memErr == nil {
		m.memWindow = appendBounded(m.memWindow, memoryPercent)
	}
	m.mutex.Unlock()

	if loadErr == nil && memErr == nil {
		log.Debugf("sampled load=%.1f%% mem=%.1f%%", loadPercent, memoryPercent)
	}
}

func appendBounded(window []float64, value float64) []float64 {
	window = append(window, value)
	if len(window) > windowSize {
		window = window[len(window)-windowSize:]
	}
	return window
}

// LatestLoadPercent returns the smoothed CPU load percentage.
func (m *ResourceMonitor) LatestLoadPercent() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return mean(m.cpuWindow)
}

// LatestMemoryPercent returns the smoothed memory usage percentage.
func (m *ResourceMonitor) LatestMemoryPercent() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return mean(m.memWindow)
}

// InstantLoadPercent reads one instantaneous CPU load sample.
func (m *ResourceMonitor) InstantLoadPercent() (float64, error) {
	return m.cpuPercent()
}

// InstantMemoryPercent reads one instantaneous memory usage sample.
func (m *ResourceMonitor) InstantMemoryPercent() (float64, error) {
	return m.memPercent()
}

// IsBlacklistedProcessRunning scans the process table for executables
// matching any of the given patterns, case-insensitively.
func (m *ResourceMonitor) IsBlacklistedProcessRunning(patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}

	processList, err := m.processes()
	if err != nil {
		m.context.Log().Warnf("process scan failed: %v", err)
		return false
	}

	for _, process := range processList {
		executable := strings.ToLower(process.Executable())
		for _, pattern := range patterns {
			pattern = strings.ToLower(pattern)
			if matched, err := filepath.Match(pattern, executable); err == nil && matched {
				return true
			}
		}
	}
	return false
}

func mean(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	var total float64
	for _, value := range window {
		total += value
	}
	return total / float64(len(window))
}

func instantCPUPercent() (float64, error) {
	values, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	return values[0], nil
}

func instantMemoryPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}
