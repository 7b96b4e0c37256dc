package shop

import "go.uber.org/fx"

// Module provides the shop settings service to Fx.
var Module = fx.Provide(NewService)
