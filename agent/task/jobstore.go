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

package task

import (
	"fmt"
	"sync"
)

// JobStore is a collection of jobs keyed by their unique ids.
type JobStore struct {
	jobs map[string]*JobToken
	m    sync.RWMutex
}

// NewJobStore creates a new job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*JobToken)}
}

// AddJob adds the given job to the store. Returns an error if a job with
// the same id already exists.
func (s *JobStore) AddJob(jobID string, token *JobToken) error {
	s.m.Lock()
	defer s.m.Unlock()
	if _, exists := s.jobs[jobID]; exists {
		return fmt.Errorf("job with id %v already exists", jobID)
	}
	s.jobs[jobID] = token
	return nil
}

// GetJob returns the job with the given id, if it exists.
func (s *JobStore) GetJob(jobID string) (token *JobToken, found bool) {
	s.m.RLock()
	defer s.m.RUnlock()
	token, found = s.jobs[jobID]
	return
}

// DeleteJob removes the job with the given id from the store.
func (s *JobStore) DeleteJob(jobID string) {
	s.m.Lock()
	defer s.m.Unlock()
	delete(s.jobs, jobID)
}

// DeleteAllJobs removes all jobs from the store and returns them.
func (s *JobStore) DeleteAllJobs() map[string]*JobToken {
	s.m.Lock()
	defer s.m.Unlock()
	jobs := s.jobs
	s.jobs = make(map[string]*JobToken)
	return jobs
}
