package service

import (
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
	"github.com/hustbill/nodejs-api-server-sub001/internal/repository"

	"github.com/shopspring/decimal"
)

// SpendLimiter 按周、按月限制单个用户的已完成订单金额
type SpendLimiter struct {
	orderRepo repository.OrderRepository
	enabled   bool
	weekly    decimal.Decimal
	monthly   decimal.Decimal
	now       func() time.Time
}

// NewSpendLimiter 额度为 0 表示不限制
func NewSpendLimiter(orderRepo repository.OrderRepository, cfg config.SpendLimitConfig) *SpendLimiter {
	return &SpendLimiter{
		orderRepo: orderRepo,
		enabled:   cfg.Enabled,
		weekly:    parseLimit(cfg.Weekly),
		monthly:   parseLimit(cfg.Monthly),
		now:       time.Now,
	}
}

func parseLimit(raw string) decimal.Decimal {
	value, err := decimal.NewFromString(raw)
	if err != nil || value.IsNegative() {
		return decimal.Zero
	}
	return models.Round2(value)
}

// Check 加上本次金额后不得超过周/月额度
func (l *SpendLimiter) Check(userID uint, amount decimal.Decimal) error {
	if l == nil || !l.enabled {
		return nil
	}
	now := l.now()
	if l.weekly.IsPositive() {
		if err := l.checkWindow(userID, amount, startOfWeek(now), l.weekly, "weekly"); err != nil {
			return err
		}
	}
	if l.monthly.IsPositive() {
		if err := l.checkWindow(userID, amount, startOfMonth(now), l.monthly, "monthly"); err != nil {
			return err
		}
	}
	return nil
}

func (l *SpendLimiter) checkWindow(userID uint, amount decimal.Decimal, since time.Time, limit decimal.Decimal, window string) error {
	spent, err := l.orderRepo.SumCompletedTotalSince(userID, since)
	if err != nil {
		return err
	}
	if models.SumRound2(spent, amount).GreaterThan(limit) {
		return withDetail(ErrSpendLimitExceeded, "%s limit %s reached", window, limit.StringFixed(2))
	}
	return nil
}

// startOfWeek 周一零点
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	day := t.AddDate(0, 0, -offset)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
