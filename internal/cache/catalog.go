package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const catalogCacheTTL = 30 * time.Minute

func userCatalogKey(userID uint, catalogCode string) string {
	return fmt.Sprintf("catalog:user:%d:%s", userID, strings.ToUpper(strings.TrimSpace(catalogCode)))
}

// GetUserCatalog 读取用户可购买目录缓存
func GetUserCatalog(ctx context.Context, userID uint, catalogCode string, dest interface{}) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	return GetJSON(ctx, userCatalogKey(userID, catalogCode), dest)
}

// SetUserCatalog 写入用户可购买目录缓存
func SetUserCatalog(ctx context.Context, userID uint, catalogCode string, value interface{}) error {
	if userID == 0 {
		return nil
	}
	return SetJSON(ctx, userCatalogKey(userID, catalogCode), value, catalogCacheTTL)
}

// InvalidateUserCatalogs 删除用户全部目录缓存（续期、促销购买后可购商品变化）
func InvalidateUserCatalogs(ctx context.Context, userID uint) (int64, error) {
	if userID == 0 {
		return 0, nil
	}
	return DelByPattern(ctx, fmt.Sprintf("catalog:user:%d:*", userID))
}
