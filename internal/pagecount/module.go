package pagecount

import "go.uber.org/fx"

// Module provides the page-count resolver to Fx.
var Module = fx.Provide(NewResolver)
