package shop

import "go.uber.org/fx"

// Module provides the shop settings repository to Fx.
var Module = fx.Provide(NewRepository)
