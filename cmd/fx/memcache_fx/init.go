package memcache_fx

import (
	"go.uber.org/fx"
	mem "paygate/pkg/memcache"
)

var Module = fx.Provide(provideTickLeases)

func provideTickLeases() mem.LeaseStore {
	return mem.NewTickLeases()
}
