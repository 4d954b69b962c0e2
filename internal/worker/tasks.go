package worker

import (
	"context"

	"github.com/DukeRupert/convertly/internal/service"
	"github.com/DukeRupert/convertly/internal/storage"
)

// Task names
const (
	TaskPurgeFiles = "purge_files"
	TaskPurgeUsage = "purge_usage"
)

// RetentionTasks returns the tasks that enforce file and usage retention.
func RetentionTasks(svc service.RetentionService) []Task {
	return []Task{
		TaskFunc{
			TaskName: TaskPurgeFiles,
			Fn: func(ctx context.Context) error {
				_, err := svc.PurgeFiles(ctx)
				if storage.IsAccessDenied(err) {
					// Credentials will not fix themselves between passes.
					return NewPermanentError(err)
				}
				return err
			},
		},
		TaskFunc{
			TaskName: TaskPurgeUsage,
			Fn: func(ctx context.Context) error {
				_, err := svc.PurgeUsage(ctx)
				return err
			},
		},
	}
}
