package services

import (
	"context"

	"github.com/google/uuid"
	"paygate/pkg/jobqueue"
)

// Job kinds handled by the dispatcher.
const (
	JobAlertDelivery    = "alert.delivery"
	JobDownsellDelivery = "downsell.delivery"
	JobAccessReconcile  = "access.reconcile"
)

// JobEnqueuer is the producer side of the dispatcher.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job *jobqueue.Job) error
}

type AlertDeliveryPayload struct {
	AlertID   uuid.UUID
	ContactID uuid.UUID
}

type DownsellDeliveryPayload struct {
	DeliveryID uuid.UUID
}

type AccessReconcilePayload struct {
	TransactionID uuid.UUID
	Kind          TransitionKind
}
