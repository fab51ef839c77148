package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
)

const authStateCacheTTL = 10 * time.Minute

var (
	ErrAuthUserDisabled = errors.New("user disabled")
	ErrAuthTokenRevoked = errors.New("token revoked")
)

// UserAuthState 令牌校验所需的用户快照，注册完成或停用时删除
type UserAuthState struct {
	UserID             uint   `json:"user_id"`
	Status             string `json:"status"`
	TokenVersion       uint64 `json:"token_version"`
	TokenInvalidBefore int64  `json:"token_invalid_before"` // Unix 秒，0 表示未设置
}

func userAuthStateKey(userID uint) string {
	return fmt.Sprintf("auth:user:%d", userID)
}

// BuildUserAuthState 从用户模型构建快照
func BuildUserAuthState(user *models.User) *UserAuthState {
	if user == nil {
		return nil
	}
	state := &UserAuthState{
		UserID:       user.ID,
		Status:       user.Status,
		TokenVersion: user.TokenVersion,
	}
	if user.TokenInvalidBefore != nil {
		state.TokenInvalidBefore = user.TokenInvalidBefore.Unix()
	}
	return state
}

// Usable 正常用户与未完成注册的用户都可以下单
func (s *UserAuthState) Usable() bool {
	if s == nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(s.Status)) {
	case constants.UserStatusActive, constants.UserStatusUnregistered:
		return true
	default:
		return false
	}
}

// Verify 校验令牌签发时的版本与时间
func (s *UserAuthState) Verify(tokenVersion uint64, issuedAt time.Time) error {
	if !s.Usable() {
		return ErrAuthUserDisabled
	}
	if tokenVersion != s.TokenVersion {
		return ErrAuthTokenRevoked
	}
	if s.TokenInvalidBefore > 0 && (issuedAt.IsZero() || issuedAt.Unix() < s.TokenInvalidBefore) {
		return ErrAuthTokenRevoked
	}
	return nil
}

// GetUserAuthState 读取快照，未启用缓存时总是未命中
func GetUserAuthState(ctx context.Context, userID uint) (*UserAuthState, bool, error) {
	if userID == 0 {
		return nil, false, nil
	}
	var state UserAuthState
	hit, err := GetJSON(ctx, userAuthStateKey(userID), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

func SetUserAuthState(ctx context.Context, state *UserAuthState) error {
	if state == nil || state.UserID == 0 {
		return nil
	}
	return SetJSON(ctx, userAuthStateKey(state.UserID), state, authStateCacheTTL)
}

// DelUserAuthState 令牌版本变更后调用
func DelUserAuthState(ctx context.Context, userID uint) error {
	if userID == 0 {
		return nil
	}
	return Del(ctx, userAuthStateKey(userID))
}
