package main

import (
	"go.uber.org/fx"

	"github.com/solveprint/printshop/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
