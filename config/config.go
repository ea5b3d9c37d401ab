// Copyright (c) 2025 BVK Chaitanya

// Package config loads StrategyConfig values from YAML with global ->
// strategy -> per-user parameter inheritance.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bvk/alphavol/creds"
	"github.com/shopspring/decimal"

	"gopkg.in/yaml.v3"
)

// Defaults holds the global parameter set applied before any strategy- or
// user-level overrides.
type Defaults struct {
	TradeIntervalSeconds int             `yaml:"tradeIntervalSeconds"`
	BuyOffsetPercentage  decimal.Decimal `yaml:"buyOffsetPercentage"`
	SellProfitPercentage decimal.Decimal `yaml:"sellProfitPercentage"`
	OrderTimeoutSeconds  int             `yaml:"orderTimeoutSeconds"`
	RetryDelaySeconds    int             `yaml:"retryDelaySeconds"`
}

// userOverride captures the subset of StrategyConfig fields a single user's
// block in YAML may override.
type userOverride struct {
	ID                   int64            `yaml:"id"`
	SingleTradeAmountRaw *decimal.Decimal `yaml:"singleTradeAmountUsdt"`
	TradeIntervalSeconds *int             `yaml:"tradeIntervalSeconds"`
	BuyOffsetPercentage  *decimal.Decimal `yaml:"buyOffsetPercentage"`
	SellProfitPercentage *decimal.Decimal `yaml:"sellProfitPercentage"`
	OrderTimeoutSeconds  *int             `yaml:"orderTimeoutSeconds"`
	RetryDelaySeconds    *int             `yaml:"retryDelaySeconds"`
}

// strategyEntry is one strategy's block as it appears in YAML, prior to
// resolving inheritance.
type strategyEntry struct {
	ID                   string           `yaml:"id"`
	DisplayName          string           `yaml:"displayName"`
	Enabled              bool             `yaml:"enabled"`
	TargetTokenSymbol    string           `yaml:"targetTokenSymbol"`
	TargetChain          string           `yaml:"targetChain"`
	TargetVolume         decimal.Decimal  `yaml:"targetVolume"`
	SingleTradeAmount    decimal.Decimal  `yaml:"singleTradeAmountUsdt"`
	TradeIntervalSeconds *int             `yaml:"tradeIntervalSeconds"`
	BuyOffsetPercentage  *decimal.Decimal `yaml:"buyOffsetPercentage"`
	SellProfitPercentage *decimal.Decimal `yaml:"sellProfitPercentage"`
	OrderTimeoutSeconds  *int             `yaml:"orderTimeoutSeconds"`
	RetryDelaySeconds    *int             `yaml:"retryDelaySeconds"`
	Users                []userOverride   `yaml:"users"`
}

// File is the top-level YAML document shape: global defaults plus a list of
// strategies.
type File struct {
	Defaults   Defaults        `yaml:"defaults"`
	Strategies []strategyEntry `yaml:"strategies"`
}

// StrategyConfig is the resolved, immutable per-strategy parameter set the
// orchestrator consumes. UserParams carries each user's fully resolved
// per-trade parameters after inheritance is applied, so any of them may
// differ between a strategy's users.
type StrategyConfig struct {
	ID                   string
	DisplayName          string
	Enabled              bool
	TargetTokenSymbol    string
	TargetChain          string
	TargetVolume         decimal.Decimal
	UserIDs              []creds.UserID
	UserParams           map[creds.UserID]UserParams
}

// UserParams is the fully-resolved per-user parameter set for one strategy,
// after global -> strategy -> per-user inheritance.
type UserParams struct {
	SingleTradeAmountUSDT decimal.Decimal
	TradeIntervalSeconds  int
	BuyOffsetPercentage   decimal.Decimal
	SellProfitPercentage  decimal.Decimal
	OrderTimeoutSeconds   int
	RetryDelaySeconds     int
}

// Load parses and resolves a strategy configuration file at path.
func Load(path string) ([]StrategyConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open config file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse resolves a strategy configuration document read from r.
func Parse(r io.Reader) ([]StrategyConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	var doc File
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("could not unmarshal config yaml: %w", err)
	}

	var out []StrategyConfig
	seen := make(map[string]bool)
	for _, se := range doc.Strategies {
		if strings.TrimSpace(se.ID) == "" {
			return nil, fmt.Errorf("strategy entry missing id")
		}
		if seen[se.ID] {
			return nil, fmt.Errorf("duplicate strategy id %q", se.ID)
		}
		seen[se.ID] = true

		sc, err := resolve(doc.Defaults, se)
		if err != nil {
			return nil, fmt.Errorf("strategy %q: %w", se.ID, err)
		}
		out = append(out, sc)
	}
	return out, nil
}

func resolve(defaults Defaults, se strategyEntry) (StrategyConfig, error) {
	if se.TargetTokenSymbol == "" {
		return StrategyConfig{}, fmt.Errorf("targetTokenSymbol required")
	}
	if !se.TargetVolume.IsPositive() {
		return StrategyConfig{}, fmt.Errorf("targetVolume must be > 0")
	}
	if len(se.Users) == 0 {
		return StrategyConfig{}, fmt.Errorf("at least one user required")
	}

	sc := StrategyConfig{
		ID:                se.ID,
		DisplayName:       se.DisplayName,
		Enabled:           se.Enabled,
		TargetTokenSymbol: se.TargetTokenSymbol,
		TargetChain:       se.TargetChain,
		TargetVolume:      se.TargetVolume,
		UserParams:        make(map[creds.UserID]UserParams, len(se.Users)),
	}

	strategyParams := UserParams{
		SingleTradeAmountUSDT: se.SingleTradeAmount,
		TradeIntervalSeconds:  orInt(se.TradeIntervalSeconds, defaults.TradeIntervalSeconds),
		BuyOffsetPercentage:   orDecimal(se.BuyOffsetPercentage, defaults.BuyOffsetPercentage),
		SellProfitPercentage:  orDecimal(se.SellProfitPercentage, defaults.SellProfitPercentage),
		OrderTimeoutSeconds:   orInt(se.OrderTimeoutSeconds, defaults.OrderTimeoutSeconds),
		RetryDelaySeconds:     orInt(se.RetryDelaySeconds, defaults.RetryDelaySeconds),
	}

	for _, u := range se.Users {
		if u.ID == 0 {
			return StrategyConfig{}, fmt.Errorf("user entry missing id")
		}
		uid := creds.UserID(u.ID)
		if _, dup := sc.UserParams[uid]; dup {
			return StrategyConfig{}, fmt.Errorf("duplicate user id %d", u.ID)
		}

		up := strategyParams
		if u.SingleTradeAmountRaw != nil {
			up.SingleTradeAmountUSDT = *u.SingleTradeAmountRaw
		}
		if u.TradeIntervalSeconds != nil {
			up.TradeIntervalSeconds = *u.TradeIntervalSeconds
		}
		if u.BuyOffsetPercentage != nil {
			up.BuyOffsetPercentage = *u.BuyOffsetPercentage
		}
		if u.SellProfitPercentage != nil {
			up.SellProfitPercentage = *u.SellProfitPercentage
		}
		if u.OrderTimeoutSeconds != nil {
			up.OrderTimeoutSeconds = *u.OrderTimeoutSeconds
		}
		if u.RetryDelaySeconds != nil {
			up.RetryDelaySeconds = *u.RetryDelaySeconds
		}
		if !up.SingleTradeAmountUSDT.IsPositive() {
			return StrategyConfig{}, fmt.Errorf("user %d: singleTradeAmountUsdt must be > 0", u.ID)
		}

		sc.UserIDs = append(sc.UserIDs, uid)
		sc.UserParams[uid] = up
	}

	return sc, nil
}

func orInt(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}

func orDecimal(v *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if v != nil {
		return *v
	}
	return fallback
}
