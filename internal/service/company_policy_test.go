package service

import (
	"testing"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/constants"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"

	"github.com/shopspring/decimal"
)

func TestResolveCompanyPolicy(t *testing.T) {
	cases := map[string]string{
		"":        "default",
		"unknown": "default",
		"mmd":     "MMD",
		" WNP ":   "WNP",
	}
	for code, want := range cases {
		if got := ResolveCompanyPolicy(code).Code(); got != want {
			t.Fatalf("code %q: expected %s, got %s", code, want, got)
		}
	}
}

func TestRankTierDiscount(t *testing.T) {
	policy := ResolveCompanyPolicy("MMD")
	cases := []struct {
		tier int
		want string
	}{
		{tier: 0, want: "0"},
		{tier: 1, want: "0.05"},
		{tier: 2, want: "0.05"},
		{tier: 4, want: "0.1"},
		{tier: 9, want: "0.15"},
	}
	for _, tc := range cases {
		rate, originator := policy.DiscountRate(DiscountInput{Distributor: &models.Distributor{RankTier: tc.tier}})
		if !rate.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("tier %d: expected %s, got %s", tc.tier, tc.want, rate.String())
		}
		if rate.IsPositive() && originator != constants.AdjustmentOriginatorBonusRank {
			t.Fatalf("tier %d: unexpected originator %s", tc.tier, originator)
		}
	}
	if rate, _ := policy.DiscountRate(DiscountInput{}); !rate.IsZero() {
		t.Fatalf("expected no discount without distributor")
	}
	if policy.QuantityCap("mmd-starter-kit") != 1 || policy.QuantityCap("OTHER") != 0 {
		t.Fatalf("unexpected quantity caps")
	}
	if !policy.CreatesBusinessCenter() {
		t.Fatalf("expected MMD to create business centers")
	}
}

func TestVolumeDiscountAndSurcharge(t *testing.T) {
	policy := ResolveCompanyPolicy("WNP")
	cases := []struct {
		volume string
		want   string
	}{
		{volume: "0", want: "0.2"},
		{volume: "199.99", want: "0.2"},
		{volume: "200", want: "0.3"},
		{volume: "399", want: "0.3"},
		{volume: "400", want: "0.4"},
	}
	for _, tc := range cases {
		rate, originator := policy.DiscountRate(DiscountInput{Distributor: &models.Distributor{PersonalVolume: decimal.RequireFromString(tc.volume)}})
		if !rate.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("volume %s: expected %s, got %s", tc.volume, tc.want, rate.String())
		}
		if originator != constants.AdjustmentOriginatorClientRank {
			t.Fatalf("unexpected originator %s", originator)
		}
	}

	if got := policy.ShippingSurcharge([]models.LineItem{{ProductID: 1}, {ProductID: 1024}}); !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected surcharge 5, got %s", got.String())
	}
	if got := policy.ShippingSurcharge([]models.LineItem{{ProductID: 1}}); !got.IsZero() {
		t.Fatalf("expected no surcharge, got %s", got.String())
	}
}

func TestRenewalDates(t *testing.T) {
	cases := []struct {
		name   string
		policy CompanyPolicy
		anchor time.Time
		months int
		cutoff int
		want   time.Time
	}{
		{
			name:   "default keeps day",
			policy: defaultPolicy{},
			anchor: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
			months: 12,
			want:   time.Date(2027, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "default clamps to month end",
			policy: defaultPolicy{},
			anchor: time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "mid month before cutoff",
			policy: ResolveCompanyPolicy("MMD"),
			anchor: time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "mid month after cutoff",
			policy: ResolveCompanyPolicy("MMD"),
			anchor: time.Date(2026, 5, 16, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "custom cutoff",
			policy: ResolveCompanyPolicy("MMD"),
			anchor: time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC),
			months: 3,
			cutoff: 20,
			want:   time.Date(2027, 2, 15, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.policy.RenewalDate(tc.anchor, tc.months, tc.cutoff)
			if !got.Equal(tc.want) {
				t.Fatalf("expected %s, got %s", tc.want.Format("2006-01-02"), got.Format("2006-01-02"))
			}
		})
	}
}
