package repository

import "gorm.io/gorm"

// applyPagination 页码从 1 开始，pageSize 非正时不分页
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	return query.Limit(pageSize).Offset((max(page, 1) - 1) * pageSize)
}
