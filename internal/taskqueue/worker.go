package taskqueue

import (
	"log"

	"github.com/hibiken/asynq"
)

var (
	asynqClient *asynq.Client
	asynqMux    = asynq.NewServeMux()
	asynqSrv    *asynq.Server
)

// StartWorkers starts Asynq workers. Concurrency spans homes; the unique
// enqueue lock in EnqueueHomeEvaluation keeps at most one evaluation per home
// in flight, so per-home evaluation stays sequential even when a slow pass
// runs past the next tick.
func StartWorkers(redisAddr string) {
	log.Printf("TASKQUEUE: starting workers with Redis at %s", redisAddr)
	asynqClient = asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	asynqMux.HandleFunc(TypeEvaluateHome, evaluateHomeTask)
	asynqSrv = asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{Concurrency: 10})
	if err := asynqSrv.Run(asynqMux); err != nil {
		log.Fatalf("TASKQUEUE: failed to start workers: %v", err)
	}
}

// StopWorkers stops workers
func StopWorkers() {
	if asynqSrv != nil {
		asynqSrv.Stop()
	}
	if asynqClient != nil {
		asynqClient.Close()
	}
	log.Println("TASKQUEUE: workers stopped")
}
