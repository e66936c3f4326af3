package queue

import (
	"github.com/hibiken/asynq"
)

const QueueIngest = "ingest"

// Queues is the worker's queue priority table.
var Queues = map[string]int{
	QueueIngest: 6,
	"default":   3,
}

type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry() *HandlersRegistry {
	return &HandlersRegistry{
		mux: asynq.NewServeMux(),
	}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}
