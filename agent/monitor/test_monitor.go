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

package monitor

// StubSampler is a Sampler returning canned values, for use in tests.
type StubSampler struct {
	Load          float64
	Memory        float64
	InstantLoad   float64
	InstantMemory float64
	BlacklistHit  bool
}

// LatestLoadPercent returns the canned smoothed load.
func (s *StubSampler) LatestLoadPercent() float64 { return s.Load }

// LatestMemoryPercent returns the canned smoothed memory usage.
func (s *StubSampler) LatestMemoryPercent() float64 { return s.Memory }

// InstantLoadPercent returns the canned instantaneous load.
func (s *StubSampler) InstantLoadPercent() (float64, error) { return s.InstantLoad, nil }

// InstantMemoryPercent returns the canned instantaneous memory usage.
func (s *StubSampler) InstantMemoryPercent() (float64, error) { return s.InstantMemory, nil }

// IsBlacklistedProcessRunning returns the canned blacklist verdict.
func (s *StubSampler) IsBlacklistedProcessRunning(patterns []string) bool {
	return s.BlacklistHit && len(patterns) > 0
}
