package calculator

import (
	"context"
	"errors"
	"math"

	"github.com/cargofret/billing/internal/calculator/config"
	"github.com/cargofret/billing/internal/model"
	"github.com/cargofret/billing/internal/store"
)

const defaultTariffName = "Default rates"

type Calculator interface {
	Calculate(origin string, destination string, weight float64, volume float64, declaredValue float64) (model.CostResult, error)
}

type calculator struct {
	cfg   config.Config
	store store.Store
}

func NewCalculator(cfg config.Config, store store.Store) Calculator {
	calculator := calculator{cfg: cfg, store: store}
	return &calculator
}

// Calculate считает стоимость перевозки по активному тарифу
// (origin, destination) или по ставкам из конфигурации, если тариф
// не найден. Составляющие не округляются, итоги округляются до целых
func (calculator *calculator) Calculate(origin string, destination string, weight float64, volume float64, declaredValue float64) (model.CostResult, error) {
	ctx := context.Background()

	baseRate := calculator.cfg.BaseRate
	ratePerKg := calculator.cfg.RatePerKg
	ratePerCbm := calculator.cfg.RatePerCbm
	insuranceRate := calculator.cfg.InsuranceRate
	tariffApplied := defaultTariffName

	tariff, err := calculator.store.TariffFindActive(ctx, origin, destination)
	switch {
	case err == nil:
		baseRate = tariff.BaseRate
		ratePerKg = tariff.RatePerKg
		ratePerCbm = tariff.RatePerCbm
		insuranceRate = tariff.InsuranceRate
		tariffApplied = tariff.Name
	case errors.Is(err, store.ErrNoRows):
		// тариф не найден - ставки по умолчанию
	default:
		return model.CostResult{}, err
	}

	weightCost := weight * ratePerKg
	volumeCost := volume * ratePerCbm
	insuranceCost := declaredValue * insuranceRate / 100

	subtotal := baseRate + weightCost + volumeCost + insuranceCost
	tax := subtotal * calculator.cfg.VATRate

	return model.CostResult{
		Breakdown: model.CostBreakdown{
			BaseRate:      baseRate,
			WeightCost:    weightCost,
			VolumeCost:    volumeCost,
			InsuranceCost: insuranceCost,
		},
		Subtotal:      math.Round(subtotal),
		Tax:           math.Round(tax),
		Total:         math.Round(subtotal + tax),
		Currency:      calculator.cfg.Currency,
		TariffApplied: tariffApplied,
	}, nil
}
