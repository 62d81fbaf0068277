package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"homewatt/internal/automation"
)

// TypeEvaluateHome is the task type for one home's evaluation pass
const TypeEvaluateHome = "evaluate_home"

// Global engine instance - initialized by the main application
var eng *automation.Engine

// SetGlobalInstances sets the engine the workers run tasks against
func SetGlobalInstances(engine *automation.Engine) {
	eng = engine
}

// EvaluationTaskPayload identifies the home to evaluate
type EvaluationTaskPayload struct {
	HomeID string
}

// EnqueueHomeEvaluation enqueues one evaluation pass for a home. No retries:
// a failed pass is not replayed, the next scheduler tick covers it.
//
// The unique lock keys the task on its payload, so while one evaluation for a
// home is pending or running the next tick's enqueue is dropped instead of
// producing a second, concurrent pass for the same home.
func EnqueueHomeEvaluation(homeID string) error {
	payload, err := json.Marshal(EvaluationTaskPayload{HomeID: homeID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeEvaluateHome, payload)
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(0), asynq.Timeout(55*time.Second), asynq.Unique(uniqueWindow))
	if err != nil {
		if isDuplicateEnqueue(err) {
			log.Printf("TASKQUEUE: evaluation for home %s still in flight, skipping this tick", homeID)
			return nil
		}
		return err
	}
	log.Printf("TASKQUEUE: enqueued task %s for home %s", info.ID, homeID)
	return nil
}

// uniqueWindow outlives the task timeout so the lock cannot lapse while the
// task it guards is still running
const uniqueWindow = 90 * time.Second

// isDuplicateEnqueue reports whether an enqueue failed only because the same
// home's evaluation is already queued or running
func isDuplicateEnqueue(err error) bool {
	return errors.Is(err, asynq.ErrDuplicateTask)
}

// evaluateHomeTask runs the engine over one home
func evaluateHomeTask(ctx context.Context, t *asynq.Task) error {
	if eng == nil {
		return fmt.Errorf("engine not initialized")
	}

	var payload EvaluationTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}

	results, err := eng.EvaluateRules(ctx, payload.HomeID)
	if err != nil {
		log.Printf("TASKQUEUE: evaluation failed for home %s: %v", payload.HomeID, err)
		return err
	}

	executed, skipped := 0, 0
	for _, r := range results {
		switch {
		case r.Success:
			executed++
		case r.Skipped:
			skipped++
		default:
			log.Printf("TASKQUEUE: rule %s failed in home %s: %s", r.RuleID, payload.HomeID, r.Error)
		}
	}
	if executed > 0 || skipped > 0 {
		log.Printf("TASKQUEUE: home %s: %d executed, %d skipped", payload.HomeID, executed, skipped)
	}
	return nil
}
