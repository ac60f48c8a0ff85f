package access_fx

import (
	"go.uber.org/fx"
	"paygate/cmd/fx/dispatcher_fx"
	"paygate/internal/services"
	"paygate/pkg/jobqueue"
)

var Module = fx.Options(
	fx.Provide(services.NewAccessService),
	fx.Invoke(subscribeTransitions, registerReconcileJob),
)

func subscribeTransitions(bus *services.EventBus, access *services.AccessService) {
	bus.Subscribe(services.TransitionGranted, access.HandleTransition)
	bus.Subscribe(services.TransitionRevoked, access.HandleTransition)
}

func registerReconcileJob(d *jobqueue.Dispatcher, policies dispatcher_fx.Policies, access *services.AccessService) {
	d.Register(services.JobAccessReconcile, access.HandleReconcileJob, policies.Default)
}
