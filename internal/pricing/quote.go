package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
)

// HierarchyStore загружает место вместе с предками.
type HierarchyStore interface {
	GetSpotHierarchy(ctx context.Context, spotID string) (model.SpotHierarchy, error)
}

// OccupancySource возвращает текущую загрузку зоны в процентах.
type OccupancySource interface {
	OccupancyRate(ctx context.Context, zoneID string) (float64, error)
}

// PriceParams - параметры, которые получает типовая политика при расчёте цены.
type PriceParams struct {
	SpotID          string
	UserID          string
	VehicleType     model.VehicleType
	Start           time.Time
	End             time.Time
	DurationMinutes int
	HourlyRate      float64
}

// TypePricer корректирует цену в зависимости от типа парковки.
type TypePricer interface {
	CalculatePrice(ctx context.Context, basePrice float64, params PriceParams) (float64, error)
}

// TypePricerLookup находит корректировщик цены для типа парковки.
type TypePricerLookup interface {
	Pricer(pt model.ParkingType) (TypePricer, bool)
}

// QuoteRequest - запрос расчёта стоимости.
type QuoteRequest struct {
	SpotID      string
	UserID      string
	VehicleType model.VehicleType
	Start       time.Time
	End         time.Time
	Discounts   []model.DiscountRequest
}

// Quote - итоговая котировка с разбивкой.
type Quote struct {
	SpotID           string                  `json:"spotId"`
	HourlyRate       float64                 `json:"hourlyRate"`
	Subtotal         float64                 `json:"subtotal"`
	Amount           float64                 `json:"amount"`
	Occupancy        *float64                `json:"occupancy,omitempty"`
	Adjustments      []Adjustment            `json:"adjustments"`
	VATRate          float64                 `json:"vatRate"`
	Discounts        []model.AppliedDiscount `json:"discounts,omitempty"`
	DiscountedAmount float64                 `json:"discountedAmount"`
	VATAmount        float64                 `json:"vatAmount"`
	TotalAmount      float64                 `json:"totalAmount"`
}

// Service связывает разрешение иерархии, динамический тариф, типовые политики и НДС.
type Service struct {
	store     HierarchyStore
	occupancy OccupancySource
	pricers   TypePricerLookup
	loc       *time.Location
}

// NewService создаёт сервис расчёта цен. occupancy и pricers могут быть nil.
func NewService(store HierarchyStore, occupancy OccupancySource, pricers TypePricerLookup, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:     store,
		occupancy: occupancy,
		pricers:   pricers,
		loc:       loc,
	}
}

// EffectivePricing возвращает конфигурацию, фактически применяемую к месту.
func (s *Service) EffectivePricing(ctx context.Context, spotID string) (model.PricingConfig, error) {
	h, err := s.store.GetSpotHierarchy(ctx, spotID)
	if err != nil {
		return model.PricingConfig{}, fmt.Errorf("load spot hierarchy: %w", err)
	}
	return ResolveHierarchy(h), nil
}

// DerivePricing строит конфигурацию дочернего уровня из родительской.
func (s *Service) DerivePricing(parent model.PricingConfig, override PricingOverride) (model.PricingConfig, error) {
	cfg := InheritPricing(parent, override)
	if err := Validate(cfg); err != nil {
		return model.PricingConfig{}, model.NewValidationError(err.Error())
	}
	return cfg, nil
}

// Quote рассчитывает стоимость бронирования места на интервал.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	if !req.Start.Before(req.End) {
		return Quote{}, model.NewValidationError("start time must be before end time")
	}

	h, err := s.store.GetSpotHierarchy(ctx, req.SpotID)
	if err != nil {
		return Quote{}, fmt.Errorf("load spot hierarchy: %w", err)
	}
	cfg := ResolveHierarchy(h)

	var occupancy *float64
	if s.occupancy != nil {
		rate, err := s.occupancy.OccupancyRate(ctx, h.Spot.ZoneID)
		if err != nil {
			return Quote{}, fmt.Errorf("occupancy rate: %w", err)
		}
		occupancy = &rate
	}

	vt := req.VehicleType
	if vt == "" {
		vt = h.Spot.VehicleType
	}

	start := req.Start.In(s.loc)
	duration := int(req.End.Sub(req.Start) / time.Minute)

	rr, err := CalculateRate(cfg, vt, start, duration, occupancy)
	if err != nil {
		return Quote{}, model.NewValidationError(err.Error())
	}

	q := Quote{
		SpotID:      req.SpotID,
		HourlyRate:  rr.HourlyRate,
		Subtotal:    rr.Subtotal,
		Amount:      rr.Subtotal,
		Occupancy:   occupancy,
		Adjustments: rr.Adjustments,
		VATRate:     cfg.VATRate,
	}

	if s.pricers != nil {
		if p, ok := s.pricers.Pricer(h.Spot.ParkingType); ok {
			amount, err := p.CalculatePrice(ctx, rr.Subtotal, PriceParams{
				SpotID:          req.SpotID,
				UserID:          req.UserID,
				VehicleType:     vt,
				Start:           start,
				End:             req.End.In(s.loc),
				DurationMinutes: duration,
				HourlyRate:      rr.HourlyRate,
			})
			if err != nil {
				return Quote{}, fmt.Errorf("%s pricing: %w", h.Spot.ParkingType, err)
			}
			amount = Round2(amount)
			if amount < 0 {
				return Quote{}, errors.New("type pricing produced a negative amount")
			}
			adj := Adjustment{Kind: AdjustmentParkingType, Name: string(h.Spot.ParkingType)}
			if rr.Subtotal > 0 {
				adj.Multiplier = amount / rr.Subtotal
			}
			q.Adjustments = append(q.Adjustments, adj)
			q.Amount = amount
		}
	}

	discounts, err := BuildDiscounts(q.Amount, req.Discounts)
	if err != nil {
		return Quote{}, err
	}
	q.Discounts = discounts

	t := Recalculate(q.Amount, discounts, q.VATRate)
	q.DiscountedAmount = t.DiscountedAmount
	q.VATAmount = t.VATAmount
	q.TotalAmount = t.TotalAmount

	return q, nil
}
