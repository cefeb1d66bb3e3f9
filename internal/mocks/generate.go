// Package mocks provides mock implementations of the caption pipeline ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the interfaces in
// internal/core. To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockPostRepository(ctrl)
//	repo.EXPECT().GetByID(gomock.Any(), "post-1").Return(post, nil)
package mocks

// Create, GetByID, BeginCaptionJob, ApplyCaptionOutcome, FailStalePending, CountByCaptionStatus
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=post_repository_mock.go github.com/target/caption-pipeline/internal/core PostRepository

// Create, Get, Apply
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_registry_mock.go github.com/target/caption-pipeline/internal/core JobRegistry

// Enqueue
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=caption_queue_mock.go github.com/target/caption-pipeline/internal/core CaptionQueue
