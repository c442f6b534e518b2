// Package transport defines the outbound contract between the core and the
// chat binding. The core treats any delivery failure as retryable and never
// advances state on failure.
package transport

import (
	"context"

	"github.com/ldi/marathon/pkg/models"
)

type Notifier interface {
	// NotifyTask announces a newly due task ("Start?" prompt).
	NotifyTask(ctx context.Context, user *models.User, post *models.Post) error
	// NotifyCompletion sends the one-time end-of-program summary prompt.
	NotifyCompletion(ctx context.Context, user *models.User) error
}
