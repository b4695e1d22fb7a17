package protocol

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"riskScope/internal/model"
	"riskScope/internal/schema"
)

// RWAYieldThresholds configures alerting for the RWA yield distributor.
type RWAYieldThresholds struct {
	LargeDepositUSD *big.Int      // INFO above this, default $50k (6 decimals)
	MinClaimPeriod  time.Duration // WARNING below this, default 7 days
	MinClaimRate    *big.Rat      // WARNING below this at finalization, default 1/2
}

// DefaultRWAYieldThresholds returns the production thresholds.
func DefaultRWAYieldThresholds() RWAYieldThresholds {
	return RWAYieldThresholds{
		LargeDepositUSD: USD(50_000),
		MinClaimPeriod:  7 * 24 * time.Hour,
		MinClaimRate:    big.NewRat(1, 2),
	}
}

// Distribution tracks one yield distribution until finalization.
type Distribution struct {
	AssetID       uint64
	Amount        *big.Int
	ClaimDeadline time.Time
	Claimed       *big.Int
	Finalized     bool
}

// AssetDistribution tracks distributions for one RWA asset.
type AssetDistribution struct {
	Distributions uint64
	TotalYield    *big.Int
	TotalClaimed  *big.Int
	LastAt        time.Time
}

// TokenStats tracks deposits per payment token.
type TokenStats struct {
	TotalAmount   *big.Int
	Distributions uint64
}

// RWAYieldStats is the immutable statistics snapshot of the RWA yield
// distributor.
type RWAYieldStats struct {
	Distributions       uint64
	TotalDepositedUSD   *big.Int // 6 decimals
	TotalClaimedUSD     *big.Int
	TotalUnclaimedUSD   *big.Int
	TotalReclaimedUSD   *big.Int
	Finalized           uint64
	ActiveDistributions int
	ByAsset             map[uint64]AssetDistribution
	ByToken             map[common.Address]TokenStats
	LastUpdate          time.Time
}

// RWAYieldAggregator tracks deadline-bounded yield distributions on the RWA
// yield distributor contract.
type RWAYieldAggregator struct {
	thresholds RWAYieldThresholds
	schema     *schema.Schema
	logger     *zap.Logger

	distributions  uint64
	totalDeposited *big.Int
	totalClaimed   *big.Int
	totalUnclaimed *big.Int
	totalReclaimed *big.Int
	finalized      uint64
	active         map[uint64]*Distribution
	byAsset        map[uint64]*AssetDistribution
	byToken        map[common.Address]*TokenStats
	lastUpdate     time.Time
}

// NewRWAYieldAggregator builds an RWA yield aggregator.
func NewRWAYieldAggregator(thresholds RWAYieldThresholds, logger *zap.Logger) *RWAYieldAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RWAYieldAggregator{
		thresholds:     thresholds,
		schema:         rwaYieldSchema(),
		logger:         logger,
		totalDeposited: new(big.Int),
		totalClaimed:   new(big.Int),
		totalUnclaimed: new(big.Int),
		totalReclaimed: new(big.Int),
		active:         make(map[uint64]*Distribution),
		byAsset:        make(map[uint64]*AssetDistribution),
		byToken:        make(map[common.Address]*TokenStats),
	}
}

func rwaYieldSchema() *schema.Schema {
	return schema.MustNew([]schema.Event{
		{
			Name: "YieldDeposited",
			Fields: []schema.Field{
				{Name: "distributionId", Type: "uint256", Indexed: true},
				{Name: "assetId", Type: "uint256", Indexed: true},
				{Name: "paymentToken", Type: "address", Indexed: true},
				{Name: "amount", Type: "uint256"},
				{Name: "claimDeadline", Type: "uint256"},
			},
		},
		{
			Name: "YieldClaimed",
			Fields: []schema.Field{
				{Name: "distributionId", Type: "uint256", Indexed: true},
				{Name: "user", Type: "address", Indexed: true},
				{Name: "amount", Type: "uint256"},
			},
		},
		{
			Name: "DistributionFinalized",
			Fields: []schema.Field{
				{Name: "distributionId", Type: "uint256", Indexed: true},
				{Name: "totalClaimed", Type: "uint256"},
				{Name: "unclaimed", Type: "uint256"},
			},
		},
		{
			Name: "UnclaimedYieldReclaimed",
			Fields: []schema.Field{
				{Name: "distributionId", Type: "uint256", Indexed: true},
				{Name: "amount", Type: "uint256"},
				{Name: "recipient", Type: "address"},
			},
		},
	})
}

func (a *RWAYieldAggregator) Name() string           { return "rwa-yield" }
func (a *RWAYieldAggregator) Schema() *schema.Schema { return a.schema }

// Apply folds one distributor event into the running statistics.
func (a *RWAYieldAggregator) Apply(ev *model.ChainEvent) ([]model.Alert, error) {
	var alerts []model.Alert

	switch ev.Name {
	case "YieldDeposited":
		alerts = a.applyDeposited(ev)
	case "YieldClaimed":
		amount := ev.Big("amount")
		a.totalClaimed.Add(a.totalClaimed, amount)
		distID := ev.Big("distributionId").Uint64()
		if dist, ok := a.active[distID]; ok {
			dist.Claimed.Add(dist.Claimed, amount)
			if as, ok := a.byAsset[dist.AssetID]; ok {
				as.TotalClaimed.Add(as.TotalClaimed, amount)
			}
		}
	case "DistributionFinalized":
		alerts = a.applyFinalized(ev)
	case "UnclaimedYieldReclaimed":
		a.totalReclaimed.Add(a.totalReclaimed, ev.Big("amount"))
	default:
		return nil, fmt.Errorf("rwa-yield: unexpected event %s", ev.Name)
	}

	a.lastUpdate = ev.ObservedAt
	return alerts, nil
}

func (a *RWAYieldAggregator) applyDeposited(ev *model.ChainEvent) []model.Alert {
	distID := ev.Big("distributionId").Uint64()
	assetID := ev.Big("assetId").Uint64()
	token := ev.Address("paymentToken")
	amount := ev.Big("amount")
	deadline := time.Unix(ev.Big("claimDeadline").Int64(), 0)

	a.distributions++
	a.totalDeposited.Add(a.totalDeposited, amount)
	a.active[distID] = &Distribution{
		AssetID:       assetID,
		Amount:        copyBig(amount),
		ClaimDeadline: deadline,
		Claimed:       new(big.Int),
	}

	as := a.byAsset[assetID]
	if as == nil {
		as = &AssetDistribution{TotalYield: new(big.Int), TotalClaimed: new(big.Int)}
		a.byAsset[assetID] = as
	}
	as.Distributions++
	as.TotalYield.Add(as.TotalYield, amount)
	as.LastAt = ev.ObservedAt

	ts := a.byToken[token]
	if ts == nil {
		ts = &TokenStats{TotalAmount: new(big.Int)}
		a.byToken[token] = ts
	}
	ts.Distributions++
	ts.TotalAmount.Add(ts.TotalAmount, amount)

	var alerts []model.Alert
	if period := deadline.Sub(ev.ObservedAt); period < a.thresholds.MinClaimPeriod {
		alerts = append(alerts, model.Alert{
			Severity: model.SeverityWarning,
			Type:     AlertShortClaimPeriod,
			Message: fmt.Sprintf("Short claim period detected: %d days for Distribution #%d",
				int(period.Hours()/24), distID),
			Data: map[string]string{
				"distributionId": ev.Big("distributionId").String(),
				"assetId":        ev.Big("assetId").String(),
				"claimDeadline":  ev.Big("claimDeadline").String(),
			},
			Source: ev,
		})
	}
	if amount.Cmp(a.thresholds.LargeDepositUSD) > 0 {
		alerts = append(alerts, model.Alert{
			Severity: model.SeverityInfo,
			Type:     AlertLargeYield,
			Message: fmt.Sprintf("Large yield deposit: $%s for Asset #%d",
				formatUnits(amount, 6), assetID),
			Data: map[string]string{
				"distributionId": ev.Big("distributionId").String(),
				"assetId":        ev.Big("assetId").String(),
				"paymentToken":   token.Hex(),
				"amount":         amount.String(),
			},
			Source: ev,
		})
	}
	return alerts
}

func (a *RWAYieldAggregator) applyFinalized(ev *model.ChainEvent) []model.Alert {
	distID := ev.Big("distributionId").Uint64()
	claimed := ev.Big("totalClaimed")
	unclaimed := ev.Big("unclaimed")

	a.finalized++
	a.totalUnclaimed.Add(a.totalUnclaimed, unclaimed)
	if dist, ok := a.active[distID]; ok {
		dist.Finalized = true
	}

	total := new(big.Int).Add(claimed, unclaimed)
	if total.Sign() == 0 {
		return nil
	}
	rate := ratio(claimed, total)
	if rate.Cmp(a.thresholds.MinClaimRate) >= 0 {
		return nil
	}
	return []model.Alert{{
		Severity: model.SeverityWarning,
		Type:     AlertLowClaimRate,
		Message: fmt.Sprintf("Low claim rate detected: %s for Distribution #%d",
			percent(rate), distID),
		Data: map[string]string{
			"distributionId": ev.Big("distributionId").String(),
			"totalClaimed":   claimed.String(),
			"unclaimed":      unclaimed.String(),
		},
		Source: ev,
	}}
}

// Snapshot returns an immutable copy of the statistics.
func (a *RWAYieldAggregator) Snapshot() interface{} {
	byAsset := make(map[uint64]AssetDistribution, len(a.byAsset))
	for id, as := range a.byAsset {
		byAsset[id] = AssetDistribution{
			Distributions: as.Distributions,
			TotalYield:    copyBig(as.TotalYield),
			TotalClaimed:  copyBig(as.TotalClaimed),
			LastAt:        as.LastAt,
		}
	}
	byToken := make(map[common.Address]TokenStats, len(a.byToken))
	for token, ts := range a.byToken {
		byToken[token] = TokenStats{
			TotalAmount:   copyBig(ts.TotalAmount),
			Distributions: ts.Distributions,
		}
	}
	activeCount := 0
	for _, dist := range a.active {
		if !dist.Finalized {
			activeCount++
		}
	}
	return RWAYieldStats{
		Distributions:       a.distributions,
		TotalDepositedUSD:   copyBig(a.totalDeposited),
		TotalClaimedUSD:     copyBig(a.totalClaimed),
		TotalUnclaimedUSD:   copyBig(a.totalUnclaimed),
		TotalReclaimedUSD:   copyBig(a.totalReclaimed),
		Finalized:           a.finalized,
		ActiveDistributions: activeCount,
		ByAsset:             byAsset,
		ByToken:             byToken,
		LastUpdate:          a.lastUpdate,
	}
}

// Reset zeroes the statistics.
func (a *RWAYieldAggregator) Reset() {
	a.distributions = 0
	a.totalDeposited = new(big.Int)
	a.totalClaimed = new(big.Int)
	a.totalUnclaimed = new(big.Int)
	a.totalReclaimed = new(big.Int)
	a.finalized = 0
	a.active = make(map[uint64]*Distribution)
	a.byAsset = make(map[uint64]*AssetDistribution)
	a.byToken = make(map[common.Address]*TokenStats)
	a.lastUpdate = time.Time{}
}
