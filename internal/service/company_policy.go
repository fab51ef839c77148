package service

import (
	"strings"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"github.com/shopspring/decimal"
)

// DiscountInput 计算折扣率所需的经销商信息
type DiscountInput struct {
	Distributor *models.Distributor
	User        *models.User
}

// CompanyPolicy 租户差异化策略，每个订单解析一次
type CompanyPolicy interface {
	Code() string
	// DiscountRate 返回折扣率与折扣调整项的发起方，率为 0 表示无折扣
	DiscountRate(input DiscountInput) (decimal.Decimal, string)
	// ShippingSurcharge 附加在运费上的固定费用
	ShippingSurcharge(items []models.LineItem) decimal.Decimal
	// QuantityCap 单个 SKU 的数量上限，0 表示不限
	QuantityCap(sku string) int
	// RenewalDate 会员续期日
	RenewalDate(anchor time.Time, months int, cutoffDay int) time.Time
	CreatesBusinessCenter() bool
}

// defaultPolicy 无租户差异
type defaultPolicy struct{}

func (defaultPolicy) Code() string { return "default" }

func (defaultPolicy) DiscountRate(DiscountInput) (decimal.Decimal, string) {
	return decimal.Zero, ""
}

func (defaultPolicy) ShippingSurcharge([]models.LineItem) decimal.Decimal { return decimal.Zero }

func (defaultPolicy) QuantityCap(string) int { return 0 }

func (defaultPolicy) RenewalDate(anchor time.Time, months int, _ int) time.Time {
	return addMonthsClamped(anchor, months)
}

func (defaultPolicy) CreatesBusinessCenter() bool { return false }

// rankTierPolicy 按经销商等级档位打折；续期采用月中截止规则
type rankTierPolicy struct {
	defaultPolicy
	code           string
	tierRates      map[int]decimal.Decimal
	quantityCaps   map[string]int
	businessCenter bool
}

func (p rankTierPolicy) Code() string { return p.code }

func (p rankTierPolicy) DiscountRate(input DiscountInput) (decimal.Decimal, string) {
	if input.Distributor == nil {
		return decimal.Zero, ""
	}
	tier := input.Distributor.RankTier
	best := -1
	for t := range p.tierRates {
		if t <= tier && t > best {
			best = t
		}
	}
	if best < 0 {
		return decimal.Zero, ""
	}
	return p.tierRates[best], constants.AdjustmentOriginatorBonusRank
}

func (p rankTierPolicy) QuantityCap(sku string) int {
	return p.quantityCaps[strings.ToUpper(strings.TrimSpace(sku))]
}

func (p rankTierPolicy) RenewalDate(anchor time.Time, months int, cutoffDay int) time.Time {
	return midMonthRenewalDate(anchor, months, cutoffDay)
}

func (p rankTierPolicy) CreatesBusinessCenter() bool { return p.businessCenter }

// volumePolicy 按近期个人业绩阶梯打折，指定商品附加运费
type volumePolicy struct {
	defaultPolicy
	code               string
	surchargeProductID uint
	surcharge          decimal.Decimal
}

func (p volumePolicy) Code() string { return p.code }

func (p volumePolicy) DiscountRate(input DiscountInput) (decimal.Decimal, string) {
	if input.Distributor == nil {
		return decimal.Zero, ""
	}
	return personalVolumeRate(input.Distributor.PersonalVolume), constants.AdjustmentOriginatorClientRank
}

func (p volumePolicy) ShippingSurcharge(items []models.LineItem) decimal.Decimal {
	for _, item := range items {
		if item.ProductID == p.surchargeProductID {
			return p.surcharge
		}
	}
	return decimal.Zero
}

// personalVolumeRate <200 → 20%，200–400 → 30%，≥400 → 40%
func personalVolumeRate(volume decimal.Decimal) decimal.Decimal {
	switch {
	case volume.LessThan(decimal.NewFromInt(200)):
		return decimal.NewFromFloat(0.2)
	case volume.LessThan(decimal.NewFromInt(400)):
		return decimal.NewFromFloat(0.3)
	default:
		return decimal.NewFromFloat(0.4)
	}
}

var companyPolicies = map[string]CompanyPolicy{
	"DEFAULT": defaultPolicy{},
	"MMD": rankTierPolicy{
		code: "MMD",
		tierRates: map[int]decimal.Decimal{
			1: decimal.NewFromFloat(0.05),
			3: decimal.NewFromFloat(0.1),
			5: decimal.NewFromFloat(0.15),
		},
		quantityCaps: map[string]int{
			"MMD-STARTER-KIT": 1,
		},
		businessCenter: true,
	},
	"WNP": volumePolicy{
		code:               "WNP",
		surchargeProductID: 1024,
		surcharge:          decimal.NewFromInt(5),
	},
}

// ResolveCompanyPolicy 按租户编码选择策略，未知编码使用默认策略
func ResolveCompanyPolicy(code string) CompanyPolicy {
	if policy, ok := companyPolicies[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return policy
	}
	return defaultPolicy{}
}

// addMonthsClamped 加 N 个月，目标月份天数不足时取月末
func addMonthsClamped(anchor time.Time, months int) time.Time {
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location()).AddDate(0, months, 0)
	day := anchor.Day()
	if last := lastDayOfMonth(first).Day(); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, anchor.Location())
}

// midMonthRenewalDate 锚定日不晚于截止日取 N 个月后的 15 号，否则取该月最后一天
func midMonthRenewalDate(anchor time.Time, months int, cutoffDay int) time.Time {
	if cutoffDay <= 0 {
		cutoffDay = 15
	}
	target := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location()).AddDate(0, months, 0)
	if anchor.Day() <= cutoffDay {
		return time.Date(target.Year(), target.Month(), 15, 0, 0, 0, 0, anchor.Location())
	}
	return lastDayOfMonth(target)
}

func lastDayOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location())
}
