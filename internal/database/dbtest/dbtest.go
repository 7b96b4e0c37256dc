// Package dbtest provides an in-memory sqlite database for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"github.com/solveprint/printshop/internal/database"
)

var seq atomic.Int64

// New opens a private in-memory database with every table created. The
// database is closed when the test ends.
func New(t testing.TB) *database.Connections {
	t.Helper()

	dsn := fmt.Sprintf("file:printshop_test_%d?mode=memory&cache=shared", seq.Add(1))
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	for _, model := range database.Tables() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			t.Fatalf("create table: %v", err)
		}
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return &database.Connections{Writer: db, Reader: db}
}
