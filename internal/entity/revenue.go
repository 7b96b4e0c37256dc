package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// DayLayout formats the revenue archive key.
const DayLayout = "2006-01-02"

// RevenueArchive keeps the value of deleted orders per shop day.
type RevenueArchive struct {
	bun.BaseModel `bun:"table:revenue_archive,alias:ra"`

	Day       string    `bun:"day,pk"`
	Amount    float64   `bun:"amount,notnull"`
	Orders    int       `bun:"orders,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}
