package protocol

import (
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"riskScope/internal/model"
	"riskScope/internal/schema"
)

// TreasuryYieldThresholds configures alerting for the treasury yield
// distributor.
type TreasuryYieldThresholds struct {
	LargeDepositUSD *big.Int // WARNING above this, default $100k (6 decimals)
	LargeBatch      *big.Int // INFO above this many recipients, default 100
}

// DefaultTreasuryYieldThresholds returns the production thresholds.
func DefaultTreasuryYieldThresholds() TreasuryYieldThresholds {
	return TreasuryYieldThresholds{
		LargeDepositUSD: USD(100_000),
		LargeBatch:      big.NewInt(100),
	}
}

// TypeBreakdown counts distributions of one type (COUPON, MATURITY, ...).
type TypeBreakdown struct {
	Count       uint64
	TotalAmount *big.Int
}

// AssetYield tracks distributions for one asset.
type AssetYield struct {
	Distributions uint64
	TotalYield    *big.Int
	LastAt        time.Time
}

// TreasuryYieldStats is the immutable statistics snapshot of the treasury
// yield distributor.
type TreasuryYieldStats struct {
	Distributions      uint64
	TotalYieldUSD      *big.Int // 6 decimals
	Claims             uint64
	TotalClaimedUSD    *big.Int
	BatchDistributions uint64
	CouponPayments     uint64
	MaturityPayments   uint64
	ByType             map[string]TypeBreakdown
	ByAsset            map[uint64]AssetYield
	LastUpdate         time.Time
}

// TreasuryYieldAggregator tracks coupon and maturity payouts on the treasury
// yield distributor contract.
type TreasuryYieldAggregator struct {
	thresholds TreasuryYieldThresholds
	schema     *schema.Schema
	logger     *zap.Logger

	distributions      uint64
	totalYield         *big.Int
	claims             uint64
	totalClaimed       *big.Int
	batchDistributions uint64
	couponPayments     uint64
	maturityPayments   uint64
	byType             map[string]*TypeBreakdown
	byAsset            map[uint64]*AssetYield
	lastUpdate         time.Time
}

// NewTreasuryYieldAggregator builds a treasury yield aggregator.
func NewTreasuryYieldAggregator(thresholds TreasuryYieldThresholds, logger *zap.Logger) *TreasuryYieldAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreasuryYieldAggregator{
		thresholds:   thresholds,
		schema:       treasuryYieldSchema(),
		logger:       logger,
		totalYield:   new(big.Int),
		totalClaimed: new(big.Int),
		byType:       make(map[string]*TypeBreakdown),
		byAsset:      make(map[uint64]*AssetYield),
	}
}

func treasuryYieldSchema() *schema.Schema {
	return schema.MustNew([]schema.Event{
		{
			Name: "YieldDeposited",
			Fields: []schema.Field{
				{Name: "distributionId", Type: "uint256", Indexed: true},
				{Name: "assetId", Type: "uint256", Indexed: true},
				{Name: "totalYield", Type: "uint256"},
				{Name: "yieldPerToken", Type: "uint256"},
				{Name: "distributionType", Type: "string"},
			},
		},
		{
			Name: "YieldClaimed",
			Fields: []schema.Field{
				{Name: "user", Type: "address", Indexed: true},
				{Name: "assetId", Type: "uint256", Indexed: true},
				{Name: "amount", Type: "uint256"},
				{Name: "distributionId", Type: "uint256"},
			},
		},
		{
			Name: "BatchDistributed",
			Fields: []schema.Field{
				{Name: "distributionId", Type: "uint256", Indexed: true},
				{Name: "assetId", Type: "uint256", Indexed: true},
				{Name: "recipientsCount", Type: "uint256"},
				{Name: "totalAmount", Type: "uint256"},
			},
		},
	})
}

func (a *TreasuryYieldAggregator) Name() string           { return "treasury-yield" }
func (a *TreasuryYieldAggregator) Schema() *schema.Schema { return a.schema }

// Apply folds one distributor event into the running statistics.
func (a *TreasuryYieldAggregator) Apply(ev *model.ChainEvent) ([]model.Alert, error) {
	var alerts []model.Alert

	switch ev.Name {
	case "YieldDeposited":
		totalYield := ev.Big("totalYield")
		distType := ev.String("distributionType")
		assetID := ev.Big("assetId").Uint64()

		a.distributions++
		a.totalYield.Add(a.totalYield, totalYield)
		switch distType {
		case "COUPON":
			a.couponPayments++
		case "MATURITY":
			a.maturityPayments++
		}

		bt := a.byType[distType]
		if bt == nil {
			bt = &TypeBreakdown{TotalAmount: new(big.Int)}
			a.byType[distType] = bt
		}
		bt.Count++
		bt.TotalAmount.Add(bt.TotalAmount, totalYield)

		ay := a.byAsset[assetID]
		if ay == nil {
			ay = &AssetYield{TotalYield: new(big.Int)}
			a.byAsset[assetID] = ay
		}
		ay.Distributions++
		ay.TotalYield.Add(ay.TotalYield, totalYield)
		ay.LastAt = ev.ObservedAt

		if totalYield.Cmp(a.thresholds.LargeDepositUSD) > 0 {
			alerts = append(alerts, model.Alert{
				Severity: model.SeverityWarning,
				Type:     AlertLargeYield,
				Message: fmt.Sprintf("Large yield deposit detected: $%s for Asset #%d",
					formatUnits(totalYield, 6), assetID),
				Source: ev,
				Data: map[string]string{
					"distributionId":   ev.Big("distributionId").String(),
					"assetId":          ev.Big("assetId").String(),
					"totalYield":       totalYield.String(),
					"distributionType": distType,
				},
			})
		}
	case "YieldClaimed":
		a.claims++
		a.totalClaimed.Add(a.totalClaimed, ev.Big("amount"))
	case "BatchDistributed":
		a.batchDistributions++
		recipients := ev.Big("recipientsCount")
		if recipients.Cmp(a.thresholds.LargeBatch) > 0 {
			alerts = append(alerts, model.Alert{
				Severity: model.SeverityInfo,
				Type:     AlertLargeBatch,
				Message: fmt.Sprintf("Large batch distribution: %s recipients received $%s",
					recipients, formatUnits(ev.Big("totalAmount"), 6)),
				Source: ev,
				Data: map[string]string{
					"distributionId":  ev.Big("distributionId").String(),
					"assetId":         ev.Big("assetId").String(),
					"recipientsCount": recipients.String(),
					"totalAmount":     ev.Big("totalAmount").String(),
				},
			})
		}
	default:
		return nil, fmt.Errorf("treasury-yield: unexpected event %s", ev.Name)
	}

	a.lastUpdate = ev.ObservedAt
	return alerts, nil
}

// Snapshot returns an immutable copy of the statistics.
func (a *TreasuryYieldAggregator) Snapshot() interface{} {
	byType := make(map[string]TypeBreakdown, len(a.byType))
	for t, bt := range a.byType {
		byType[t] = TypeBreakdown{Count: bt.Count, TotalAmount: copyBig(bt.TotalAmount)}
	}
	byAsset := make(map[uint64]AssetYield, len(a.byAsset))
	for id, ay := range a.byAsset {
		byAsset[id] = AssetYield{
			Distributions: ay.Distributions,
			TotalYield:    copyBig(ay.TotalYield),
			LastAt:        ay.LastAt,
		}
	}
	return TreasuryYieldStats{
		Distributions:      a.distributions,
		TotalYieldUSD:      copyBig(a.totalYield),
		Claims:             a.claims,
		TotalClaimedUSD:    copyBig(a.totalClaimed),
		BatchDistributions: a.batchDistributions,
		CouponPayments:     a.couponPayments,
		MaturityPayments:   a.maturityPayments,
		ByType:             byType,
		ByAsset:            byAsset,
		LastUpdate:         a.lastUpdate,
	}
}

// Reset zeroes the statistics.
func (a *TreasuryYieldAggregator) Reset() {
	a.distributions = 0
	a.totalYield = new(big.Int)
	a.claims = 0
	a.totalClaimed = new(big.Int)
	a.batchDistributions = 0
	a.couponPayments = 0
	a.maturityPayments = 0
	a.byType = make(map[string]*TypeBreakdown)
	a.byAsset = make(map[uint64]*AssetYield)
	a.lastUpdate = time.Time{}
}
