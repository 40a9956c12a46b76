package portfolio

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/rzzdr/quant-scenario-engine/internal/scenario"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

// TypeField is the discriminator present on every persisted node
const TypeField = "asset_type"

// Encode converts an asset tree into nested maps
func Encode(a Asset) map[string]any {
	m := map[string]any{TypeField: string(a.Kind())}
	switch v := a.(type) {
	case *Equity:
		m["ticker"] = v.Ticker
	case *VanillaCallOption:
		m["strike"] = v.Strike
		m["maturity"] = v.Maturity
		m["asset"] = Encode(v.Underlying)
		if v.RateKey != "" && v.RateKey != defaultRateKey(v.Kind()) {
			m["rate_key"] = v.RateKey
		}
	case *Position:
		m["amount"] = v.Amount
		m["asset"] = Encode(v.Asset)
	case *Portfolio:
		assets := make([]any, len(v.Assets))
		for i, child := range v.Assets {
			assets[i] = Encode(child)
		}
		m["assets"] = assets
	}
	return m
}

func defaultRateKey(k Kind) string {
	if k == KindVanillaCallOptionDK {
		return scenario.DKKLibor1W
	}
	return scenario.EoniaRate
}

type decoder func(m map[string]any) (Asset, error)

func decoderFor(k Kind) (decoder, bool) {
	switch k {
	case KindEquity:
		return decodeEquity, true
	case KindVanillaCallOption, KindVanillaCallOptionDK:
		return decodeOption, true
	case KindPosition:
		return decodePosition, true
	case KindPortfolio:
		return decodePortfolio, true
	case KindNullAsset:
		return func(map[string]any) (Asset, error) { return NullAsset{}, nil }, true
	}
	return nil, false
}

func kindOf(m map[string]any) (Kind, error) {
	raw, ok := m[TypeField]
	if !ok {
		return "", errors.SerializationMismatch("an asset_type", "")
	}
	tag, err := cast.ToStringE(raw)
	if err != nil {
		return "", errors.SerializationMismatch("an asset_type", fmt.Sprint(raw))
	}
	return Kind(tag), nil
}

// Decode rebuilds an asset tree from nested maps, dispatching on asset_type
func Decode(m map[string]any) (Asset, error) {
	k, err := kindOf(m)
	if err != nil {
		return nil, err
	}
	dec, ok := decoderFor(k)
	if !ok {
		return nil, errors.SerializationMismatch("a known asset_type", string(k))
	}
	return dec(m)
}

// DecodeAs decodes m and fails unless its asset_type is want
func DecodeAs(want Kind, m map[string]any) (Asset, error) {
	k, err := kindOf(m)
	if err != nil {
		return nil, err
	}
	if k != want {
		return nil, errors.SerializationMismatch(string(want), string(k))
	}
	return Decode(m)
}

func decodeChild(m map[string]any, field string) (Asset, error) {
	raw, ok := m[field]
	if !ok {
		return nil, errors.InvalidArgument(fmt.Sprintf("%s is missing field %q", m[TypeField], field))
	}
	child, err := cast.ToStringMapE(raw)
	if err != nil {
		return nil, errors.InvalidArgument(fmt.Sprintf("field %q is not an asset: %v", field, err))
	}
	return Decode(child)
}

func floatField(m map[string]any, field string) (float64, error) {
	raw, ok := m[field]
	if !ok {
		return 0, errors.InvalidArgument(fmt.Sprintf("%s is missing field %q", m[TypeField], field))
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, errors.InvalidArgument(fmt.Sprintf("field %q: %v", field, err))
	}
	return v, nil
}

func decodeEquity(m map[string]any) (Asset, error) {
	ticker, err := cast.ToStringE(m["ticker"])
	if err != nil || ticker == "" {
		return nil, errors.InvalidArgument("Equity needs a ticker")
	}
	return NewEquity(ticker), nil
}

func decodeOption(m map[string]any) (Asset, error) {
	strike, err := floatField(m, "strike")
	if err != nil {
		return nil, err
	}
	maturity, err := floatField(m, "maturity")
	if err != nil {
		return nil, err
	}
	underlying, err := decodeChild(m, "asset")
	if err != nil {
		return nil, err
	}

	k, _ := kindOf(m)
	opt := NewVanillaCallOption(strike, maturity, underlying)
	if k == KindVanillaCallOptionDK {
		opt = NewVanillaCallOptionDK(strike, maturity, underlying)
	}
	if raw, ok := m["rate_key"]; ok {
		if opt.RateKey, err = cast.ToStringE(raw); err != nil {
			return nil, errors.InvalidArgument(fmt.Sprintf("field %q: %v", "rate_key", err))
		}
	}
	return opt, nil
}

func decodePosition(m map[string]any) (Asset, error) {
	amount, err := floatField(m, "amount")
	if err != nil {
		return nil, err
	}
	asset, err := decodeChild(m, "asset")
	if err != nil {
		return nil, err
	}
	return NewPosition(amount, asset), nil
}

func decodePortfolio(m map[string]any) (Asset, error) {
	raw, ok := m["assets"]
	if !ok || raw == nil {
		return NewPortfolio(), nil
	}
	items, err := cast.ToSliceE(raw)
	if err != nil {
		return nil, errors.InvalidArgument(fmt.Sprintf("field %q: %v", "assets", err))
	}
	p := NewPortfolio()
	for i, item := range items {
		child, err := cast.ToStringMapE(item)
		if err != nil {
			return nil, errors.InvalidArgument(fmt.Sprintf("assets[%d] is not an asset: %v", i, err))
		}
		asset, err := Decode(child)
		if err != nil {
			return nil, errors.Wrapf(err, "assets[%d]", i)
		}
		p.WithAsset(asset)
	}
	return p, nil
}
