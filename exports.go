package billing

import "github.com/civicledger/billing/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Period is re-exported from types package.
type Period = types.Period

// PeriodRange is re-exported from types package.
type PeriodRange = types.PeriodRange

// Re-export Money constructors
var (
	PHP     = types.PHP
	USD     = types.USD
	Zero    = types.Zero
	ZeroPHP = types.ZeroPHP
	Sum     = types.Sum
)

// Re-export period helpers
var (
	ParsePeriod   = types.ParsePeriod
	PeriodOf      = types.PeriodOf
	CurrentPeriod = types.CurrentPeriod
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
