package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
)

// SyncInput is the input for the water beta sync workflow.
type SyncInput struct {
	FeedURL string
	Source  string
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	Features     int
	Observations int
	KeysDropped  int
	Published    bool
}

// WaterBetaSyncWorkflow fetches the upstream feed and imports it. Storing is
// the only step that can fail the run; cache invalidation and the update
// event are attempted and logged, since cached entries expire on their own.
func WaterBetaSyncWorkflow(ctx workflow.Context, input SyncInput) (*SyncResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting water beta sync", "source", input.Source)

	fetchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	})
	storeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})
	bestEffortCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
		},
	})

	// Step 1: Fetch
	var feed *domain.Feed
	if err := workflow.ExecuteActivity(fetchCtx, ActivityFetchFeed, input.FeedURL).Get(ctx, &feed); err != nil {
		return nil, err
	}

	// Step 2: Store
	var ev *domain.SyncEvent
	if err := workflow.ExecuteActivity(storeCtx, ActivityStoreFeed, feed, input.Source).Get(ctx, &ev); err != nil {
		return nil, err
	}
	result := &SyncResult{Features: ev.Features, Observations: ev.Observations}

	// Step 3: Invalidate cache
	if err := workflow.ExecuteActivity(bestEffortCtx, ActivityInvalidateCache).Get(ctx, &result.KeysDropped); err != nil {
		logger.Warn("cache invalidation failed", "error", err)
	}

	// Step 4: Publish update
	if err := workflow.ExecuteActivity(bestEffortCtx, ActivityPublishUpdate, ev).Get(ctx, nil); err != nil {
		logger.Warn("publish update failed", "error", err)
	} else {
		result.Published = true
	}

	logger.Info("Water beta sync finished",
		"features", result.Features,
		"observations", result.Observations,
		"keysDropped", result.KeysDropped,
	)
	return result, nil
}

// EnsureSchedule registers an interval schedule that starts the sync
// workflow. An existing schedule with the same id is left as is.
func EnsureSchedule(ctx context.Context, c client.Client, id, taskQueue string, every time.Duration, input SyncInput) error {
	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: id,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: every}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        id + "-run",
			Workflow:  WaterBetaSyncWorkflow,
			Args:      []interface{}{input},
			TaskQueue: taskQueue,
		},
	})
	if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create schedule %s: %w", id, err)
	}
	return nil
}
