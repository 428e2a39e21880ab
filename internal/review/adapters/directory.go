// Package adapters provides production implementations of the ledger's
// external ports. Target and reviewer data are owned by upstream systems; the
// server loads periodic snapshot exports from disk so the ledger never needs
// write access to either.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"attest/internal/review"
	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

// FileTargetRepository serves target snapshots from a JSON export keyed by
// target ID.
type FileTargetRepository struct {
	mu      sync.RWMutex
	targets map[id.TargetID]review.TargetSnapshot
}

// NewFileTargetRepository loads the snapshot export at path. An empty path
// yields an empty repository.
func NewFileTargetRepository(path string) (*FileTargetRepository, error) {
	repo := &FileTargetRepository{targets: make(map[id.TargetID]review.TargetSnapshot)}
	if path == "" {
		return repo, nil
	}
	if err := loadJSONFile(path, &repo.targets); err != nil {
		return nil, fmt.Errorf("load target snapshots: %w", err)
	}
	for targetID, snapshot := range repo.targets {
		snapshot.TargetID = targetID
		repo.targets[targetID] = snapshot
	}
	return repo, nil
}

func (r *FileTargetRepository) Load(ctx context.Context, targetID id.TargetID) (*review.TargetSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot, ok := r.targets[targetID]
	if !ok {
		return nil, fmt.Errorf("target %s: %w", targetID, sentinel.ErrNotFound)
	}
	return &snapshot, nil
}

// Put replaces a target snapshot. Exposed for local development and tests.
func (r *FileTargetRepository) Put(snapshot review.TargetSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[snapshot.TargetID] = snapshot
}

// FileReviewerDirectory serves reviewer records from a JSON export keyed by
// reviewer ID.
type FileReviewerDirectory struct {
	mu        sync.RWMutex
	reviewers map[id.ReviewerID]review.Reviewer
}

// NewFileReviewerDirectory loads the directory export at path. An empty path
// yields an empty directory.
func NewFileReviewerDirectory(path string) (*FileReviewerDirectory, error) {
	dir := &FileReviewerDirectory{reviewers: make(map[id.ReviewerID]review.Reviewer)}
	if path == "" {
		return dir, nil
	}
	if err := loadJSONFile(path, &dir.reviewers); err != nil {
		return nil, fmt.Errorf("load reviewer directory: %w", err)
	}
	for reviewerID, reviewer := range dir.reviewers {
		reviewer.ID = reviewerID
		dir.reviewers[reviewerID] = reviewer
	}
	return dir, nil
}

func (d *FileReviewerDirectory) Load(ctx context.Context, reviewerID id.ReviewerID) (*review.Reviewer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	reviewer, ok := d.reviewers[reviewerID]
	if !ok {
		return nil, fmt.Errorf("reviewer %s: %w", reviewerID, sentinel.ErrNotFound)
	}
	return &reviewer, nil
}

// Put replaces a reviewer record. Exposed for local development and tests.
func (d *FileReviewerDirectory) Put(reviewer review.Reviewer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reviewers[reviewer.ID] = reviewer
}

func loadJSONFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
