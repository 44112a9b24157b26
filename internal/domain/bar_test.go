package domain

import (
	"errors"
	"testing"
)

func validBar(ts int64) *Bar {
	return &Bar{
		TimestampMs:    ts,
		Symbol:         "SOL-USD",
		Open:           100,
		High:           105,
		Low:            95,
		Close:          102,
		Volume:         1000,
		LiquidityScore: 0.8,
	}
}

func TestBarValidate_OK(t *testing.T) {
	if err := validBar(1000).Validate(); err != nil {
		t.Fatalf("valid bar rejected: %v", err)
	}
}

func TestBarValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Bar)
		want   error
	}{
		{"zero open", func(b *Bar) { b.Open = 0 }, ErrBarPrice},
		{"negative close", func(b *Bar) { b.Close = -1 }, ErrBarPrice},
		{"high below close", func(b *Bar) { b.High = 101 }, ErrBarHighLow},
		{"low above open", func(b *Bar) { b.Low = 101 }, ErrBarHighLow},
		{"negative volume", func(b *Bar) { b.Volume = -5 }, ErrBarVolume},
		{"liquidity above one", func(b *Bar) { b.LiquidityScore = 1.5 }, ErrBarLiquidity},
		{"liquidity below zero", func(b *Bar) { b.LiquidityScore = -0.1 }, ErrBarLiquidity},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := validBar(1000)
			tc.mutate(b)
			if err := b.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNewSeries_OrderingEnforced(t *testing.T) {
	bars := []*Bar{validBar(1000), validBar(2000), validBar(3000)}
	s, err := NewSeries("SOL-USD", 1000, bars)
	if err != nil {
		t.Fatalf("NewSeries failed: %v", err)
	}
	if s.Len() != 3 || s.StartMs() != 1000 || s.EndMs() != 3000 {
		t.Errorf("unexpected series bounds: len=%d start=%d end=%d", s.Len(), s.StartMs(), s.EndMs())
	}

	// Duplicate timestamp
	if _, err := NewSeries("SOL-USD", 1000, []*Bar{validBar(1000), validBar(1000)}); err == nil {
		t.Error("duplicate timestamp accepted")
	}

	// Out of order
	if _, err := NewSeries("SOL-USD", 1000, []*Bar{validBar(2000), validBar(1000)}); err == nil {
		t.Error("out-of-order bars accepted")
	}

	// Wrong symbol
	wrong := validBar(4000)
	wrong.Symbol = "ETH-USD"
	if _, err := NewSeries("SOL-USD", 1000, []*Bar{wrong}); err == nil {
		t.Error("mismatched symbol accepted")
	}
}

func TestSeriesMaxGapMs(t *testing.T) {
	s, err := NewSeries("SOL-USD", 1000, []*Bar{validBar(1000), validBar(2000), validBar(9000)})
	if err != nil {
		t.Fatalf("NewSeries failed: %v", err)
	}
	if got := s.MaxGapMs(); got != 7000 {
		t.Errorf("MaxGapMs = %d, want 7000", got)
	}

	single, _ := NewSeries("SOL-USD", 1000, []*Bar{validBar(1000)})
	if got := single.MaxGapMs(); got != 0 {
		t.Errorf("MaxGapMs on single bar = %d, want 0", got)
	}
}
