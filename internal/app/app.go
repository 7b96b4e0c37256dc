package app

import (
	"go.uber.org/fx"

	"github.com/solveprint/printshop/internal/auth"
	"github.com/solveprint/printshop/internal/cache"
	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/database"
	"github.com/solveprint/printshop/internal/logger"
	"github.com/solveprint/printshop/internal/messaging"
	"github.com/solveprint/printshop/internal/observability"
	"github.com/solveprint/printshop/internal/pagecount"
	"github.com/solveprint/printshop/internal/payment"
	"github.com/solveprint/printshop/internal/queue"
	repositoryorder "github.com/solveprint/printshop/internal/repository/order"
	repositoryshop "github.com/solveprint/printshop/internal/repository/shop"
	grpcserver "github.com/solveprint/printshop/internal/server/grpc"
	httpserver "github.com/solveprint/printshop/internal/server/http"
	serviceorder "github.com/solveprint/printshop/internal/service/order"
	serviceshop "github.com/solveprint/printshop/internal/service/shop"
	"github.com/solveprint/printshop/internal/storage"
	transporthttp "github.com/solveprint/printshop/internal/transport/http"
	"github.com/solveprint/printshop/internal/worker"
	workerorder "github.com/solveprint/printshop/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
)

// Domain provides repositories, services and their collaborators.
var Domain = fx.Options(
	repositoryorder.Module,
	repositoryshop.Module,
	storage.Module,
	pagecount.Module,
	payment.Module,
	auth.Module,
	queue.Module,
	serviceshop.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP and gRPC transports on top of the core modules.
var HTTP = fx.Options(
	Core,
	Domain,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	Domain,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
