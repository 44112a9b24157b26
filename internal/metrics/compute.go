package metrics

import "math"

// tradingDaysPerYear is the annualization base for Sharpe/Sortino.
const tradingDaysPerYear = 252.0

// computeMean calculates the arithmetic mean of returns.
func computeMean(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range returns {
		sum += r
	}
	return sum / float64(len(returns))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(returns []float64, mean float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, r := range returns {
		diff := r - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// SharpeRatio is mean return over return volatility, annualized.
// Returns 0 when fewer than 2 samples exist or volatility is zero —
// an explicit branch, never a NaN.
func SharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := computeMean(returns)
	stddev := computeStddev(returns, mean)
	if stddev == 0 {
		return 0
	}
	return mean / stddev * math.Sqrt(tradingDaysPerYear)
}

// SortinoRatio is the Sharpe variant using only downside volatility.
// Returns +Inf when there are zero negative returns (documented edge case,
// not an error: the sentinel compares cleanly in the qualification gate).
// Returns 0 when fewer than 2 samples exist or downside volatility is zero.
func SortinoRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return math.Inf(1)
	}

	downsideMean := computeMean(downside)
	downsideStddev := computeStddev(downside, downsideMean)
	if downsideStddev == 0 {
		return 0
	}
	return computeMean(returns) / downsideStddev * math.Sqrt(tradingDaysPerYear)
}

// ProfitFactor is gross profit over gross loss.
// Returns +Inf when total loss is zero and 0 when there was no profit either.
func ProfitFactor(totalProfit, totalLoss float64) float64 {
	if totalLoss == 0 {
		if totalProfit == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return totalProfit / totalLoss
}

// RecoveryFactor is net profit over the capital lost at the worst drawdown.
// Returns +Inf when max drawdown is zero and 0 when capital is non-positive.
func RecoveryFactor(netProfit, initialCapital, maxDrawdown float64) float64 {
	if initialCapital <= 0 {
		return 0
	}
	if maxDrawdown == 0 {
		return math.Inf(1)
	}
	return netProfit / (initialCapital * maxDrawdown)
}

// WinRate is successful over total trades, 0 when no trades exist.
func WinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}
