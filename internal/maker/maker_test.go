package maker

import (
	"math"
	"testing"
)

func TestSizeSidesImplementsDeployFormulas(t *testing.T) {
	t.Parallel()

	m := &Maker{cfg: Config{FundFactor: 0.2, TargetingFactor: 0.5}}

	baseBal, quoteBal, rate := 2.0, 20000.0, 10000.0
	bidFundBase, askFundBase := m.sizeSides(baseBal, quoteBal, rate)

	total := baseBal + quoteBal/rate // 2 + 2 = 4
	invested := baseBal / total      // 0.5

	wantDeployBase := baseBal * m.cfg.FundFactor * invested * m.cfg.TargetingFactor
	wantDeployQuote := quoteBal * m.cfg.FundFactor * (1 - invested*m.cfg.TargetingFactor)
	wantBidFundBase := wantDeployQuote / rate

	if math.Abs(askFundBase-wantDeployBase) > 1e-9 {
		t.Errorf("askFundBase = %v, want deploy-base %v", askFundBase, wantDeployBase)
	}
	if math.Abs(bidFundBase-wantBidFundBase) > 1e-9 {
		t.Errorf("bidFundBase = %v, want deploy-quote/rate %v", bidFundBase, wantBidFundBase)
	}
}

func TestSizeSidesAsymmetricWhenInventorySkewed(t *testing.T) {
	t.Parallel()

	// All-quote, no-base portfolio: invested = 0, so deploy-base collapses
	// to zero (nothing to sell) while deploy-quote keeps its full
	// fund-factor share (nothing scaled down by the targeting term).
	m := &Maker{cfg: Config{FundFactor: 0.2, TargetingFactor: 0.5}}
	bidFundBase, askFundBase := m.sizeSides(0, 10000, 100)

	if askFundBase != 0 {
		t.Errorf("askFundBase = %v, want 0 with no base balance", askFundBase)
	}
	wantBidFundBase := (10000.0 * 0.2 * 1) / 100
	if math.Abs(bidFundBase-wantBidFundBase) > 1e-9 {
		t.Errorf("bidFundBase = %v, want %v", bidFundBase, wantBidFundBase)
	}
}

func TestSizeSidesZeroRateYieldsNoFunds(t *testing.T) {
	t.Parallel()

	m := &Maker{cfg: Config{FundFactor: 0.2, TargetingFactor: 0.5}}
	bidFundBase, askFundBase := m.sizeSides(1, 1000, 0)
	if bidFundBase != 0 || askFundBase != 0 {
		t.Errorf("sizeSides with zero rate = (%v, %v), want (0, 0)", bidFundBase, askFundBase)
	}
}
