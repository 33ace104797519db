package scope

import (
	"fmt"

	"gorm.io/gorm"
)

// Limit caps the result size; non-positive values fall back to def.
func Limit(n, def int) func(db *gorm.DB) *gorm.DB {
	if n <= 0 {
		n = def
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(n)
	}
}

func OrderByDesc(column string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(fmt.Sprintf("%s DESC", column))
	}
}
