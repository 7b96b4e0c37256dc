package payment

import "go.uber.org/fx"

// Module provides the configured payment verifier to Fx.
var Module = fx.Provide(NewFromConfig)
