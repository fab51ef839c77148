package models

import (
	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/logger"
)

var builtinRoles = []Role{
	{Code: constants.RoleCodeDistributor, Name: "Distributor", DiscountAllowed: true},
	{Code: constants.RoleCodeRetailCustomer, Name: "Retail Customer"},
	{Code: constants.RoleCodePreferred, Name: "Preferred Customer", DiscountAllowed: true},
	{Code: constants.RoleCodeAdmin, Name: "Administrator", IsAdmin: true},
	{Code: constants.RoleCodeSupport, Name: "Customer Support"},
	{Code: constants.RoleCodeFulfillment, Name: "Fulfillment"},
}

// InitDefaultRoles 初始化内置角色，已存在的角色不覆盖
func InitDefaultRoles() error {
	for _, role := range builtinRoles {
		item := role
		result := DB.Where("code = ?", item.Code).FirstOrCreate(&item)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			logger.Infow("builtin_role_created", "code", item.Code, "role_id", item.ID)
		}
	}
	return nil
}
