package domain

// Report is the aggregate outcome of one symbol's simulation run.
// A pure derived snapshot: recomputed at end of simulation, never mutated
// afterward. Ratio fields use explicit sentinels instead of NaN — see the
// metrics package for the per-metric division-by-zero branches.
type Report struct {
	RunID  string
	Symbol string

	// Counts
	TotalTrades      int
	SuccessfulTrades int
	FailedTrades     int
	WinRate          float64 // successful / total, 0 when no trades

	// Capital
	InitialCapital float64
	FinalCapital   float64
	TotalProfit    float64 // gross profit across winning trades
	TotalLoss      float64 // gross loss across losing trades (positive)
	NetProfit      float64

	// Risk / quality ratios
	MaxDrawdown    float64 // peak-to-trough fraction, monotonically non-decreasing during a run
	SharpeRatio    float64 // 0 when stddev == 0 or fewer than 2 samples
	SortinoRatio   float64 // +Inf when no negative returns
	ProfitFactor   float64 // +Inf when total loss == 0
	RecoveryFactor float64 // +Inf when max drawdown == 0

	// Data quality, carried over from the validation suite
	DataQualityScore   float64
	CompatibilityScore float64

	// Simulated range
	StartTimeMs int64
	EndTimeMs   int64
}

// Thresholds is the qualification gate configuration.
// Values are configuration only: nothing in the harness feeds them back into
// outcome sampling.
type Thresholds struct {
	MinWinRate       float64 `yaml:"min_win_rate"`
	MaxDrawdown      float64 `yaml:"max_drawdown"`
	MinCompatibility float64 `yaml:"min_compatibility"`
	MinDataQuality   float64 `yaml:"min_data_quality"`
	MinSharpe        float64 `yaml:"min_sharpe"`
	MinProfitFactor  float64 `yaml:"min_profit_factor"`
}

// DefaultThresholds returns the stock qualification thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinWinRate:       0.93,
		MaxDrawdown:      0.10,
		MinCompatibility: 0.95,
		MinDataQuality:   0.90,
		MinSharpe:        1.0,
		MinProfitFactor:  1.5,
	}
}

// CriterionResult records pass/fail for one qualification criterion,
// with the actual and required values so callers can render a complete
// diagnostic without re-querying the report.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// QualificationResult is the gate's decision over a report.
// Criteria always holds all six checks, in a fixed order.
type QualificationResult struct {
	Passed   bool
	Criteria []CriterionResult
}

// FailingCriteria returns the criteria that did not pass.
func (r *QualificationResult) FailingCriteria() []CriterionResult {
	var failing []CriterionResult
	for _, c := range r.Criteria {
		if !c.Pass {
			failing = append(failing, c)
		}
	}
	return failing
}

// FailingNames returns the names of failing criteria, in evaluation order.
func (r *QualificationResult) FailingNames() []string {
	var names []string
	for _, c := range r.Criteria {
		if !c.Pass {
			names = append(names, c.Name)
		}
	}
	return names
}
