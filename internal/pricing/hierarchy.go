// Package pricing реализует разрешение иерархических цен, динамический тариф,
// скидки и расчёт НДС.
package pricing

import (
	"errors"
	"fmt"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
)

// Значения по умолчанию, если конфигурация отсутствует на всех уровнях.
const (
	DefaultBaseRate = 50.0
	DefaultVATRate  = 0.12
)

// DefaultPricing возвращает глобальную конфигурацию цены.
func DefaultPricing() model.PricingConfig {
	return model.PricingConfig{
		BaseRate:            DefaultBaseRate,
		OccupancyMultiplier: 1,
		VATRate:             DefaultVATRate,
	}
}

// ResolvePricing возвращает самую специфичную из заданных конфигураций целиком:
// место, затем зона, секция и локация. Поля не объединяются.
func ResolvePricing(spot, zone, section, location *model.PricingConfig) model.PricingConfig {
	for _, cfg := range []*model.PricingConfig{spot, zone, section, location} {
		if cfg != nil {
			return clone(*cfg)
		}
	}
	return DefaultPricing()
}

// ResolveHierarchy применяет ResolvePricing к загруженной иерархии места.
func ResolveHierarchy(h model.SpotHierarchy) model.PricingConfig {
	return ResolvePricing(h.Spot.Pricing, h.Zone.Pricing, h.Section.Pricing, h.Location.Pricing)
}

// PricingOverride - частичное переопределение родительской конфигурации.
// nil-поле наследуется; непустой или пустой, но не nil, список заменяет родительский целиком.
type PricingOverride struct {
	BaseRate            *float64                `json:"baseRate,omitempty"`
	VehicleTypeRates    []model.VehicleTypeRate `json:"vehicleTypeRates,omitempty"`
	TimeBasedRates      []model.TimeBasedRate   `json:"timeBasedRates,omitempty"`
	HolidayRates        []model.HolidayRate     `json:"holidayRates,omitempty"`
	OccupancyMultiplier *float64                `json:"occupancyMultiplier,omitempty"`
	VATRate             *float64                `json:"vatRate,omitempty"`
}

// InheritPricing строит новую конфигурацию, где каждое поле берётся из override,
// если оно задано, иначе из parent без изменений.
func InheritPricing(parent model.PricingConfig, override PricingOverride) model.PricingConfig {
	out := clone(parent)

	if override.BaseRate != nil {
		out.BaseRate = *override.BaseRate
	}
	if override.VehicleTypeRates != nil {
		out.VehicleTypeRates = append([]model.VehicleTypeRate{}, override.VehicleTypeRates...)
	}
	if override.TimeBasedRates != nil {
		out.TimeBasedRates = append([]model.TimeBasedRate{}, override.TimeBasedRates...)
	}
	if override.HolidayRates != nil {
		out.HolidayRates = append([]model.HolidayRate{}, override.HolidayRates...)
	}
	if override.OccupancyMultiplier != nil {
		out.OccupancyMultiplier = *override.OccupancyMultiplier
	}
	if override.VATRate != nil {
		out.VATRate = *override.VATRate
	}

	return out
}

func clone(cfg model.PricingConfig) model.PricingConfig {
	out := cfg
	if cfg.VehicleTypeRates != nil {
		out.VehicleTypeRates = append([]model.VehicleTypeRate{}, cfg.VehicleTypeRates...)
	}
	if cfg.TimeBasedRates != nil {
		out.TimeBasedRates = append([]model.TimeBasedRate{}, cfg.TimeBasedRates...)
	}
	if cfg.HolidayRates != nil {
		out.HolidayRates = append([]model.HolidayRate{}, cfg.HolidayRates...)
	}
	return out
}

// AddVehicleTypeRate добавляет ставку для типа транспорта, заменяя существующую ставку того же типа.
func AddVehicleTypeRate(cfg model.PricingConfig, rate model.VehicleTypeRate) model.PricingConfig {
	out := clone(cfg)
	for i, r := range out.VehicleTypeRates {
		if r.VehicleType == rate.VehicleType {
			out.VehicleTypeRates[i] = rate
			return out
		}
	}
	out.VehicleTypeRates = append(out.VehicleTypeRates, rate)
	return out
}

// RemoveVehicleTypeRate удаляет ставку для типа транспорта.
func RemoveVehicleTypeRate(cfg model.PricingConfig, vt model.VehicleType) model.PricingConfig {
	out := clone(cfg)
	rates := out.VehicleTypeRates[:0]
	for _, r := range out.VehicleTypeRates {
		if r.VehicleType != vt {
			rates = append(rates, r)
		}
	}
	out.VehicleTypeRates = rates
	return out
}

// AddTimeBasedRate добавляет временной множитель.
func AddTimeBasedRate(cfg model.PricingConfig, rate model.TimeBasedRate) model.PricingConfig {
	out := clone(cfg)
	out.TimeBasedRates = append(out.TimeBasedRates, rate)
	return out
}

// RemoveTimeBasedRate удаляет временные множители с указанным именем.
func RemoveTimeBasedRate(cfg model.PricingConfig, name string) model.PricingConfig {
	out := clone(cfg)
	rates := out.TimeBasedRates[:0]
	for _, r := range out.TimeBasedRates {
		if r.Name != name {
			rates = append(rates, r)
		}
	}
	out.TimeBasedRates = rates
	return out
}

// AddHolidayRate добавляет праздничный множитель.
func AddHolidayRate(cfg model.PricingConfig, rate model.HolidayRate) model.PricingConfig {
	out := clone(cfg)
	out.HolidayRates = append(out.HolidayRates, rate)
	return out
}

// RemoveHolidayRate удаляет праздничные множители с указанным именем.
func RemoveHolidayRate(cfg model.PricingConfig, name string) model.PricingConfig {
	out := clone(cfg)
	rates := out.HolidayRates[:0]
	for _, r := range out.HolidayRates {
		if r.Name != name {
			rates = append(rates, r)
		}
	}
	out.HolidayRates = rates
	return out
}

// Validate проверяет конфигурацию перед сохранением.
func Validate(cfg model.PricingConfig) error {
	var errs []error

	if cfg.BaseRate < 0 {
		errs = append(errs, errors.New("base rate must not be negative"))
	}
	if cfg.VATRate < 0 || cfg.VATRate > 1 {
		errs = append(errs, errors.New("vat rate must be between 0 and 1"))
	}
	if cfg.OccupancyMultiplier < 0 {
		errs = append(errs, errors.New("occupancy multiplier must not be negative"))
	}

	seen := make(map[model.VehicleType]struct{}, len(cfg.VehicleTypeRates))
	for _, r := range cfg.VehicleTypeRates {
		if _, ok := seen[r.VehicleType]; ok {
			errs = append(errs, fmt.Errorf("duplicate rate for vehicle type %s", r.VehicleType))
		}
		seen[r.VehicleType] = struct{}{}
		if r.Rate < 0 {
			errs = append(errs, fmt.Errorf("negative rate for vehicle type %s", r.VehicleType))
		}
	}

	for _, r := range cfg.TimeBasedRates {
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			errs = append(errs, fmt.Errorf("time rate %q: day of week out of range", r.Name))
		}
		if r.StartMinute < 0 || r.EndMinute > minutesPerDay || r.StartMinute > r.EndMinute {
			errs = append(errs, fmt.Errorf("time rate %q: invalid minute window", r.Name))
		}
		if r.Multiplier <= 0 {
			errs = append(errs, fmt.Errorf("time rate %q: multiplier must be positive", r.Name))
		}
	}

	for _, r := range cfg.HolidayRates {
		if r.Date.IsZero() {
			errs = append(errs, fmt.Errorf("holiday rate %q: date is required", r.Name))
		}
		if r.Multiplier <= 0 {
			errs = append(errs, fmt.Errorf("holiday rate %q: multiplier must be positive", r.Name))
		}
	}

	return errors.Join(errs...)
}
