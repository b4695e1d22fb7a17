package protocol

import (
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"riskScope/internal/model"
	"riskScope/internal/schema"
)

// AssetStatus is the lifecycle status a treasury asset reports on-chain.
type AssetStatus uint8

const (
	AssetActive AssetStatus = iota
	AssetVerified
	AssetPaused
	AssetDefaulted
	AssetMatured
)

// String returns the on-chain status name.
func (s AssetStatus) String() string {
	switch s {
	case AssetActive:
		return "ACTIVE"
	case AssetVerified:
		return "VERIFIED"
	case AssetPaused:
		return "PAUSED"
	case AssetDefaulted:
		return "DEFAULTED"
	case AssetMatured:
		return "MATURED"
	default:
		return "UNKNOWN"
	}
}

// TreasuryThresholds configures asset factory alerting.
type TreasuryThresholds struct {
	LargeAssetUSD *big.Int // INFO above this issued value, default $1M (6 decimals)
}

// DefaultTreasuryThresholds returns the production thresholds.
func DefaultTreasuryThresholds() TreasuryThresholds {
	return TreasuryThresholds{LargeAssetUSD: USD(1_000_000)}
}

type assetState struct {
	verified bool
	status   AssetStatus
	value    *big.Int
}

// TreasuryStats is the immutable statistics snapshot of an asset factory.
type TreasuryStats struct {
	AssetsCreated  uint64
	VerifiedAssets uint64
	MaturedAssets  uint64
	TotalValueUSD  *big.Int // cumulative issued value, 6 decimals
	LastAssetID    uint64
	Statuses       map[uint64]string // assetId -> current status name
	LastUpdate     time.Time
}

// TreasuryAggregator tracks issuance and lifecycle status on a treasury asset
// factory contract.
type TreasuryAggregator struct {
	thresholds TreasuryThresholds
	schema     *schema.Schema
	logger     *zap.Logger

	assetsCreated  uint64
	verifiedAssets uint64
	maturedAssets  uint64
	totalValue     *big.Int
	lastAssetID    uint64
	assets         map[uint64]*assetState
	lastUpdate     time.Time
}

// NewTreasuryAggregator builds an asset factory aggregator.
func NewTreasuryAggregator(thresholds TreasuryThresholds, logger *zap.Logger) *TreasuryAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreasuryAggregator{
		thresholds: thresholds,
		schema:     treasurySchema(),
		logger:     logger,
		totalValue: new(big.Int),
		assets:     make(map[uint64]*assetState),
	}
}

func treasurySchema() *schema.Schema {
	return schema.MustNew([]schema.Event{
		{
			Name: "AssetCreated",
			Fields: []schema.Field{
				{Name: "assetId", Type: "uint256", Indexed: true},
				{Name: "symbol", Type: "string"},
				{Name: "cusip", Type: "string"},
				{Name: "totalValue", Type: "uint256"},
				{Name: "maturityDate", Type: "uint256"},
				{Name: "couponRate", Type: "uint256"},
			},
		},
		{
			Name: "AssetVerified",
			Fields: []schema.Field{
				{Name: "assetId", Type: "uint256", Indexed: true},
				{Name: "verifier", Type: "address", Indexed: true},
				{Name: "timestamp", Type: "uint256"},
			},
		},
		{
			Name: "AssetStatusUpdated",
			Fields: []schema.Field{
				{Name: "assetId", Type: "uint256", Indexed: true},
				{Name: "newStatus", Type: "uint8"},
			},
		},
		{
			Name: "AssetMatured",
			Fields: []schema.Field{
				{Name: "assetId", Type: "uint256", Indexed: true},
				{Name: "finalValue", Type: "uint256"},
			},
		},
	})
}

func (a *TreasuryAggregator) Name() string           { return "treasury" }
func (a *TreasuryAggregator) Schema() *schema.Schema { return a.schema }

// Apply folds one factory event into the running statistics.
func (a *TreasuryAggregator) Apply(ev *model.ChainEvent) ([]model.Alert, error) {
	assetID := ev.Big("assetId").Uint64()
	var alerts []model.Alert

	switch ev.Name {
	case "AssetCreated":
		value := ev.Big("totalValue")
		a.assetsCreated++
		a.totalValue.Add(a.totalValue, value)
		a.lastAssetID = assetID
		a.assets[assetID] = &assetState{status: AssetActive, value: copyBig(value)}

		if value.Cmp(a.thresholds.LargeAssetUSD) > 0 {
			alerts = append(alerts, model.Alert{
				Severity: model.SeverityInfo,
				Type:     AlertLargeAsset,
				Message: fmt.Sprintf("Large asset created: %s worth $%s",
					ev.String("symbol"), formatUnits(value, 6)),
				Source: ev,
				Data: map[string]string{
					"assetId":    ev.Big("assetId").String(),
					"symbol":     ev.String("symbol"),
					"cusip":      ev.String("cusip"),
					"totalValue": value.String(),
				},
			})
		}
	case "AssetVerified":
		a.verifiedAssets++
		if asset, ok := a.assets[assetID]; ok {
			asset.verified = true
		}
	case "AssetStatusUpdated":
		status := AssetStatus(ev.Big("newStatus").Uint64())
		if asset, ok := a.assets[assetID]; ok {
			asset.status = status
		} else {
			a.assets[assetID] = &assetState{status: status, value: new(big.Int)}
		}
		if status == AssetPaused || status == AssetDefaulted {
			alerts = append(alerts, model.Alert{
				Severity: model.SeverityCritical,
				Type:     AlertAssetIssue,
				Message:  fmt.Sprintf("Asset #%d status changed to %s", assetID, status),
				Source:   ev,
				Data: map[string]string{
					"assetId":   ev.Big("assetId").String(),
					"newStatus": status.String(),
				},
			})
		}
	case "AssetMatured":
		a.maturedAssets++
		if asset, ok := a.assets[assetID]; ok {
			asset.status = AssetMatured
		}
	default:
		return nil, fmt.Errorf("treasury: unexpected event %s", ev.Name)
	}

	a.lastUpdate = ev.ObservedAt
	return alerts, nil
}

// Snapshot returns an immutable copy of the statistics.
func (a *TreasuryAggregator) Snapshot() interface{} {
	statuses := make(map[uint64]string, len(a.assets))
	for id, asset := range a.assets {
		statuses[id] = asset.status.String()
	}
	return TreasuryStats{
		AssetsCreated:  a.assetsCreated,
		VerifiedAssets: a.verifiedAssets,
		MaturedAssets:  a.maturedAssets,
		TotalValueUSD:  copyBig(a.totalValue),
		LastAssetID:    a.lastAssetID,
		Statuses:       statuses,
		LastUpdate:     a.lastUpdate,
	}
}

// Reset zeroes the statistics.
func (a *TreasuryAggregator) Reset() {
	a.assetsCreated = 0
	a.verifiedAssets = 0
	a.maturedAssets = 0
	a.totalValue = new(big.Int)
	a.lastAssetID = 0
	a.assets = make(map[uint64]*assetState)
	a.lastUpdate = time.Time{}
}
