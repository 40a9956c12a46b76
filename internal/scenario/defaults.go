package scenario

// Risk factor identifiers of the default market
const (
	NordeaTicker  = "CPH:NDA-DK"
	DanskeTicker  = "CPH:DANSKE"
	EoniaRate     = "EONIA"
	DKKLibor1W    = "DKKLIBOR-1W"
	VolatilitySfx = "-volatility"
)

// DefaultMarket returns the reference snapshot used when no scenario file is configured
func DefaultMarket() map[string]float64 {
	return map[string]float64{
		DayKey:                       1,
		NordeaTicker:                 67.63,
		DanskeTicker:                 106.1,
		NordeaTicker + VolatilitySfx: 1,
		EoniaRate:                    -0.0049,
		DKKLibor1W:                   -0.00002,
	}
}

// DefaultKeys returns the randomized risk factors of the default market
func DefaultKeys() []string {
	return []string{NordeaTicker, DanskeTicker}
}

// DefaultCovariance returns the covariance of DefaultKeys
func DefaultCovariance() [][]float64 {
	return [][]float64{
		{2.0, 0.5},
		{0.5, 1.0},
	}
}

// DefaultMonteCarlo returns a generator over the default market
func DefaultMonteCarlo(seed uint64) (*MonteCarlo, error) {
	return NewMonteCarlo(DefaultMarket(), DefaultCovariance(), DefaultKeys(), seed)
}
