package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// MemoryJobStore is an in-memory JobStore.
type MemoryJobStore struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	manifests map[string]*RunManifest
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs:      make(map[string]*Job),
		manifests: make(map[string]*RunManifest),
	}
}

// CreateJob stores a new job.
func (s *MemoryJobStore) CreateJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	s.jobs[job.ID] = job
	return nil
}

// GetJob retrieves a job by ID.
func (s *MemoryJobStore) GetJob(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("job %s not found", id)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// UpdateJob replaces an existing job.
func (s *MemoryJobStore) UpdateJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; !exists {
		return fmt.Errorf("job %s not found", job.ID)
	}

	s.jobs[job.ID] = job
	return nil
}

// ListJobs returns jobs matching the filter.
func (s *MemoryJobStore) ListJobs(filter JobFilter) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Job

	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.RunID != "" && job.RunID != filter.RunID {
			continue
		}
		if filter.Pipeline != "" && job.Pipeline != filter.Pipeline {
			continue
		}
		if !filter.Since.IsZero() && job.CreatedAt.Before(filter.Since) {
			continue
		}

		jobCopy := *job
		result = append(result, &jobCopy)

		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}

	return result, nil
}

// DeleteJob removes a job from the store.
func (s *MemoryJobStore) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; !exists {
		return fmt.Errorf("job %s not found", id)
	}

	delete(s.jobs, id)
	return nil
}

// CreateManifest stores a new manifest.
func (s *MemoryJobStore) CreateManifest(manifest *RunManifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.manifests[manifest.ID]; exists {
		return fmt.Errorf("manifest %s already exists", manifest.ID)
	}

	s.manifests[manifest.ID] = manifest
	return nil
}

// GetManifest retrieves a manifest by ID.
func (s *MemoryJobStore) GetManifest(id string) (*RunManifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	manifest, exists := s.manifests[id]
	if !exists {
		return nil, fmt.Errorf("manifest %s not found", id)
	}

	return manifest.Clone(), nil
}

// UpdateManifest replaces an existing manifest.
func (s *MemoryJobStore) UpdateManifest(manifest *RunManifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.manifests[manifest.ID]; !exists {
		return fmt.Errorf("manifest %s not found", manifest.ID)
	}

	s.manifests[manifest.ID] = manifest
	return nil
}

// GetManifestByRunID retrieves a manifest by its run ID.
func (s *MemoryJobStore) GetManifestByRunID(runID string) (*RunManifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, manifest := range s.manifests {
		if manifest.RunID == runID {
			return manifest.Clone(), nil
		}
	}

	return nil, fmt.Errorf("manifest for run %s not found", runID)
}

// CleanupOldJobs removes finished jobs older than the given age and
// returns how many were deleted.
func (s *MemoryJobStore) CleanupOldJobs(olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	deleted := 0

	for id, job := range s.jobs {
		if job.Status == JobStatusCompleted || job.Status == JobStatusFailed || job.Status == JobStatusCancelled {
			if job.CreatedAt.Before(cutoff) {
				delete(s.jobs, id)
				deleted++
			}
		}
	}

	return deleted, nil
}

// Stats returns counts by job status.
func (s *MemoryJobStore) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]int{
		"total_jobs":      len(s.jobs),
		"total_manifests": len(s.manifests),
		"pending":         0,
		"running":         0,
		"completed":       0,
		"failed":          0,
		"cancelled":       0,
	}

	for _, job := range s.jobs {
		switch job.Status {
		case JobStatusPending:
			stats["pending"]++
		case JobStatusRunning:
			stats["running"]++
		case JobStatusCompleted:
			stats["completed"]++
		case JobStatusFailed:
			stats["failed"]++
		case JobStatusCancelled:
			stats["cancelled"]++
		}
	}

	return stats
}
