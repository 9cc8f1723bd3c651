package stocktake

import "stockbook/internal/core/numerator"

// NumeratorStrategy for stocktake numbers. Strict: approved stocktakes are
// accounting documents, gaps in the sequence raise questions at audit time.
const NumeratorStrategy = numerator.StrategyStrict

// NumberPrefix for generated stocktake numbers (ST-2026-00001).
const NumberPrefix = "ST"
