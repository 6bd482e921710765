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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddAndGetJob(t *testing.T) {
	store := NewJobStore()
	token := &JobToken{id: "job-1"}

	assert.NoError(t, store.AddJob("job-1", token))

	found, ok := store.GetJob("job-1")
	assert.True(t, ok)
	assert.Equal(t, token, found)
}

func TestAddDuplicateJobFails(t *testing.T) {
	store := NewJobStore()
	assert.NoError(t, store.AddJob("job-1", &JobToken{id: "job-1"}))
	assert.Error(t, store.AddJob("job-1", &JobToken{id: "job-1"}))
}

func TestDeleteJob(t *testing.T) {
	store := NewJobStore()
	assert.NoError(t, store.AddJob("job-1", &JobToken{id: "job-1"}))

	store.DeleteJob("job-1")

	_, ok := store.GetJob("job-1")
	assert.False(t, ok)

	// a deleted id can be reused
	assert.NoError(t, store.AddJob("job-1", &JobToken{id: "job-1"}))
}

func TestDeleteAllJobsReturnsAndClears(t *testing.T) {
	store := NewJobStore()
	assert.NoError(t, store.AddJob("job-1", &JobToken{id: "job-1"}))
	assert.NoError(t, store.AddJob("job-2", &JobToken{id: "job-2"}))

	jobs := store.DeleteAllJobs()
	assert.Len(t, jobs, 2)

	_, ok := store.GetJob("job-1")
	assert.False(t, ok)
	_, ok = store.GetJob("job-2")
	assert.False(t, ok)
}
