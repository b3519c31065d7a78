package stage

import (
	"context"
)

// Handler describes the contract the scheduler needs from each media
// operation.
type Handler interface {
	Run(context.Context, Job) (Result, error)
	HealthCheck(context.Context) Health
}
