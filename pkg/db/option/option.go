package option

import (
	"time"

	"github.com/agrishield/claims/pkg/db/pagination"
	"gorm.io/gorm"
)

// Option narrows a gorm statement.
type Option interface {
	Apply(stmt *gorm.DB) *gorm.DB
}

type paginationOption struct {
	page pagination.Pagination
}

// ApplyPagination decodes the cursor token and limits a query to one page
// plus one extra row so callers can detect whether more rows exist.
func ApplyPagination(page pagination.Pagination) Option {
	return paginationOption{page: page}
}

func (o paginationOption) Apply(stmt *gorm.DB) *gorm.DB {
	size := o.page.PageSize
	if size <= 0 {
		size = 20
	}

	if token := o.page.PageToken; token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err == nil && cursor != nil && cursor.CreatedAt != "" {
			if at, err := time.Parse(time.RFC3339, cursor.CreatedAt); err == nil {
				stmt = stmt.Where("created_at < ?", at)
			}
		}
	}

	return stmt.Limit(size + 1)
}
