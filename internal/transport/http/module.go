package http

import (
	"go.uber.org/fx"

	filetransport "github.com/solveprint/printshop/internal/transport/http/file"
	ordertransport "github.com/solveprint/printshop/internal/transport/http/order"
	shoptransport "github.com/solveprint/printshop/internal/transport/http/shop"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	shoptransport.Module,
	filetransport.Module,
)
