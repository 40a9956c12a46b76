package portfolio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/quant-scenario-engine/internal/pricing"
	"github.com/rzzdr/quant-scenario-engine/internal/scenario"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

func market() scenario.Scenario {
	return scenario.New(0, scenario.DefaultMarket())
}

func threeLevel() *Portfolio {
	opt := NewVanillaCallOptionDK(70, 10, NewEquity(scenario.NordeaTicker))
	return NewPortfolio(
		NewPosition(2, opt),
		NewEquity(scenario.DanskeTicker).Position(10),
		NullAsset{},
	)
}

func TestDefaultPortfolioPrice(t *testing.T) {
	p, err := Default().Price(market(), pricing.NewBaseEngine())
	require.NoError(t, err)
	assert.InDelta(t, 7882.233843533935, p, 1e-6)
}

func TestPortfolioPriceIsSumOfChildren(t *testing.T) {
	e := pricing.NewBaseEngine()
	s := market()
	p := threeLevel()

	total, err := p.Price(s, e)
	require.NoError(t, err)

	var sum float64
	for _, child := range p.Children() {
		v, err := child.Price(s, e)
		require.NoError(t, err)
		sum += v
	}
	assert.InDelta(t, sum, total, 1e-9)
}

func TestPositionScalesChild(t *testing.T) {
	e := pricing.NewBaseEngine()
	s := market()
	eq := NewEquity(scenario.NordeaTicker)

	for _, amount := range []float64{0, 1, -3, 12.5} {
		pos := eq.Position(amount)
		got, err := pos.Price(s, e)
		require.NoError(t, err)
		unit, err := eq.Price(s, e)
		require.NoError(t, err)
		assert.InDelta(t, amount*unit, got, 1e-9)

		vol, err := pos.Volatility(s, e)
		require.NoError(t, err)
		assert.InDelta(t, amount*1.0, vol, 1e-12)
	}
}

func TestVolatilityUnsupported(t *testing.T) {
	e := pricing.NewBaseEngine()
	for _, a := range []Asset{Default(), NewPortfolio(), Default().Assets[2]} {
		_, err := a.Volatility(market(), e)
		assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedOperation), a.String())
	}

	v, err := NullAsset{}.Volatility(market(), e)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestOptionExample(t *testing.T) {
	e := pricing.NewBaseEngine()
	underlying := NewEquity("A")

	opt := NewVanillaCallOption(90, 10, underlying)
	opt.RateKey = "RATE"

	s := scenario.New(0, map[string]float64{"DAY": 1, "A": 100, "A-volatility": 1, "RATE": 0})
	p, err := opt.Price(s, e)
	require.NoError(t, err)
	want, err := pricing.BlackScholesCall(90, 9, 100, 1, 0)
	require.NoError(t, err)
	assert.InDelta(t, want, p, 1e-12)
	assert.Greater(t, p, 10.0)

	calm := s.With("A-volatility", 0.01)
	p, err = opt.Price(calm, e)
	require.NoError(t, err)
	assert.True(t, p >= 9.99 && p <= 10.2, "price %g", p)
}

func TestOptionRateKeys(t *testing.T) {
	e := pricing.NewBaseEngine()
	s := market()
	eur := NewEquity(scenario.NordeaTicker).CallOption(70, 10)
	dk := NewVanillaCallOptionDK(70, 10, NewEquity(scenario.NordeaTicker))

	pe, err := eur.Price(s, e)
	require.NoError(t, err)
	pd, err := dk.Price(s, e)
	require.NoError(t, err)
	assert.InDelta(t, 58.233843533935016, pe, 1e-9)
	assert.InDelta(t, 58.43626371946859, pd, 1e-9)
}

func TestOptionFailures(t *testing.T) {
	e := pricing.NewBaseEngine()
	opt := NewEquity(scenario.NordeaTicker).CallOption(70, 1)
	_, err := opt.Price(market(), e)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidOptionParameters))

	_, err = NewEquity("MISSING").Price(market(), e)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMissingRiskFactor))
}

func TestPriceFrameMatchesPrice(t *testing.T) {
	mc, err := scenario.DefaultMonteCarlo(5)
	require.NoError(t, err)
	rows, err := scenario.Take(mc.Scenarios(), 40)
	require.NoError(t, err)
	f := scenario.FromScenarios(rows)

	for _, e := range []pricing.Engine{pricing.NewBaseEngine(), pricing.NewProxyEngine(pricing.NewBaseEngine(), 9, pricing.DefaultProxyRules()...)} {
		for _, a := range []Asset{Default(), threeLevel()} {
			prices, err := a.PriceFrame(f, e)
			require.NoError(t, err)
			require.Len(t, prices, len(rows))
			for i, s := range rows {
				want, err := a.Price(s, e)
				require.NoError(t, err)
				assert.InDelta(t, want, prices[i], 1e-9)
			}
		}
	}
}

func TestDescendantsAndWalk(t *testing.T) {
	d := Descendants(threeLevel())
	kinds := make([]Kind, len(d))
	for i, a := range d {
		kinds[i] = a.Kind()
	}
	assert.Equal(t, []Kind{KindPosition, KindVanillaCallOptionDK, KindEquity, KindPosition, KindEquity, KindNullAsset}, kinds)

	var visited int
	stop := errors.New("stop")
	err := Walk(threeLevel(), func(a Asset) error {
		visited++
		if a.Kind() == KindEquity {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 4, visited)
}

func TestCloneIsDeep(t *testing.T) {
	orig := threeLevel()
	cp := orig.Clone().(*Portfolio)
	cp.Assets[0].(*Position).Amount = 100
	cp.WithAsset(NewEquity("X"))

	assert.Equal(t, 2.0, orig.Assets[0].(*Position).Amount)
	assert.Len(t, orig.Assets, 3)
}

func TestCodecRoundTrip(t *testing.T) {
	e := pricing.NewBaseEngine()
	orig := NewPortfolio(NewPosition(3, NewVanillaCallOption(70, 10, NewEquity(scenario.NordeaTicker))), threeLevel())

	back, err := Decode(Encode(orig))
	require.NoError(t, err)
	assert.Equal(t, orig.String(), back.String())

	want, err := orig.Price(market(), e)
	require.NoError(t, err)
	got, err := back.Price(market(), e)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeMismatch(t *testing.T) {
	m := Encode(NewEquity("A"))
	_, err := DecodeAs(KindPosition, m)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSerializationMismatch))

	_, err = Decode(map[string]any{"asset_type": "Bond"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeSerializationMismatch))

	_, err = Decode(map[string]any{"ticker": "A"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeSerializationMismatch))

	a, err := DecodeAs(KindEquity, m)
	require.NoError(t, err)
	assert.Equal(t, "A", a.String())
}

func TestUnmarshalYAMLCoercesIntegers(t *testing.T) {
	doc := []byte(`
asset_type: Portfolio
assets:
  - asset_type: Position
    amount: 100
    asset:
      asset_type: Equity
      ticker: CPH:NDA-DK
  - asset_type: VanillaCallOption
    strike: 70
    maturity: 10
    asset:
      asset_type: Equity
      ticker: CPH:NDA-DK
`)
	a, err := UnmarshalYAML(doc)
	require.NoError(t, err)
	p := a.(*Portfolio)
	require.Len(t, p.Assets, 2)
	assert.Equal(t, 100.0, p.Assets[0].(*Position).Amount)
	assert.Equal(t, scenario.EoniaRate, p.Assets[1].(*VanillaCallOption).RateKey)
}

func TestFiles(t *testing.T) {
	e := pricing.NewBaseEngine()
	want, err := threeLevel().Price(market(), e)
	require.NoError(t, err)

	dir := t.TempDir()
	for _, name := range []string{"p.yaml", "p.yml", "p.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveFile(path, threeLevel()))
		back, err := LoadFile(path)
		require.NoError(t, err)
		got, err := back.Price(market(), e)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	assert.Error(t, SaveFile(filepath.Join(dir, "p.txt"), threeLevel()))
	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
