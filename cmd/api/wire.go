//go:build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/Ashab24/batch-job-orch/cmd/api/api"
	"github.com/Ashab24/batch-job-orch/lib/providers"
)

// initializeApp is the injector function
func initializeApp() (*application, func(), error) {
	panic(wire.Build(
		providers.ProvideContext,
		providers.ProvideLogger,
		providers.ProvideConfig,
		providers.ProvidePaths,
		providers.ProvideMeter,
		providers.ProvidePackageIndex,
		providers.ProvideImageManager,
		providers.ProvideRuntime,
		providers.ProvideRunManager,
		api.New,
		wire.Struct(new(application), "*"),
	))
}
