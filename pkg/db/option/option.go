package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuerySortBy struct {
	SortBy  string
	OrderBy string
}

// QueryOption mutates a gorm query before it is executed by the repository.
type QueryOption func(*gorm.DB) *gorm.DB

func WithSortBy(sort QuerySortBy) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		column := sort.SortBy
		if column == "" {
			column = "created_at"
		}

		order := strings.ToUpper(sort.OrderBy)
		if order != "DESC" {
			order = "ASC"
		}

		return tx.Order(fmt.Sprintf("%s %s", column, order))
	}
}

func WithLimit(limit int) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(limit)
	}
}

// LockingUpdate is a gorm scope applying SELECT ... FOR UPDATE.
func LockingUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
