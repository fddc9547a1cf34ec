package config

// Ставки по умолчанию, когда тариф (origin, destination) не найден.
// Значения в конфигурации, а не в коде калькулятора, чтобы политику
// можно было менять и тестировать
type Config struct {
	BaseRate      float64
	RatePerKg     float64
	RatePerCbm    float64
	InsuranceRate float64
	VATRate       float64
	Currency      string
}

func Default() Config {
	return Config{
		BaseRate:      5000,
		RatePerKg:     1500,
		RatePerCbm:    8000,
		InsuranceRate: 2.5,
		VATRate:       0.19,
		Currency:      "FCFA",
	}
}
