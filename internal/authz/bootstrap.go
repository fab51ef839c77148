package authz

import (
	"fmt"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 系统预置角色矩阵，角色名与用户角色编码一致
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: constants.RoleCodeAdmin,
			Policies: []Policy{
				{Object: ObjectOrders, Action: "*"},
				{Object: "/admin/*", Action: "*"},
			},
		},
		{
			Role: constants.RoleCodeSupport,
			Policies: []Policy{
				{Object: ObjectOrders, Action: "READ"},
				{Object: "/admin/orders", Action: "GET"},
				{Object: "/admin/orders/:id", Action: "GET"},
				{Object: "/admin/orders/:id/state-events", Action: "GET"},
				{Object: "/admin/orders/:id/return-authorizations", Action: "GET"},
			},
		},
		{
			Role:     constants.RoleCodeFulfillment,
			Inherits: []string{constants.RoleCodeSupport},
			Policies: []Policy{
				{Object: ObjectOrders, Action: "WRITE"},
				{Object: "/admin/orders/:id/shipment", Action: "PATCH"},
				{Object: "/admin/return-authorizations/:id/receive", Action: "POST"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}

	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}

		for _, parent := range seed.Inherits {
			parentRole, err := s.EnsureRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}

		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
