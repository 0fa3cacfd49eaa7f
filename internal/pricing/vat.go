package pricing

import (
	"fmt"
	"math"
	"slices"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
)

// Доля скидки для льготных категорий.
const statutoryDiscountRate = 0.20

// Totals - итог после скидок и НДС.
type Totals struct {
	DiscountedAmount float64 `json:"discountedAmount"`
	VATAmount        float64 `json:"vatAmount"`
	TotalAmount      float64 `json:"totalAmount"`
}

// Recalculate применяет скидки к amount и начисляет НДС на остаток.
// Если хотя бы одна скидка освобождает от НДС, ставка обнуляется.
func Recalculate(amount float64, discounts []model.AppliedDiscount, vatRate float64) Totals {
	var sum float64
	exempt := false
	for _, d := range discounts {
		sum += d.Amount
		if d.IsVATExempt {
			exempt = true
		}
	}

	discounted := math.Max(0, amount-sum)
	if exempt {
		vatRate = 0
	}

	vat := Round2(discounted * vatRate)
	return Totals{
		DiscountedAmount: Round2(discounted),
		VATAmount:        vat,
		TotalAmount:      Round2(discounted + vat),
	}
}

// Round2 округляет до двух знаков половиной вверх.
func Round2(v float64) float64 {
	// Поправка убирает ошибку двоичного представления вида 2.675 -> 267.49999.
	return math.Round(v*100+math.Copysign(1e-7, v)) / 100
}

// NewDiscount строит скидку из каталога. Для льготных категорий (senior, pwd)
// сумма считается от amount и освобождает от НДС; для остальных используется value.
func NewDiscount(t model.DiscountType, amount, value float64) (model.AppliedDiscount, error) {
	switch t {
	case model.DiscountSenior, model.DiscountPWD:
		return model.AppliedDiscount{
			Type:        t,
			Amount:      Round2(amount * statutoryDiscountRate),
			IsVATExempt: true,
		}, nil
	case model.DiscountPromo, model.DiscountLoyalty:
		if !(value > 0) || math.IsInf(value, 0) {
			return model.AppliedDiscount{}, fmt.Errorf("discount %s requires a positive amount", t)
		}
		return model.AppliedDiscount{Type: t, Amount: Round2(value)}, nil
	default:
		return model.AppliedDiscount{}, fmt.Errorf("unknown discount type %q", t)
	}
}

// BuildDiscounts строит скидки каталога для базовой суммы amount.
// Скидка повторяющегося типа заменяет предыдущую.
func BuildDiscounts(amount float64, reqs []model.DiscountRequest) ([]model.AppliedDiscount, error) {
	var (
		res  []model.AppliedDiscount
		errs []string
	)
	for _, r := range reqs {
		d, err := NewDiscount(r.Type, amount, r.Value)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if i := slices.IndexFunc(res, func(x model.AppliedDiscount) bool { return x.Type == d.Type }); i >= 0 {
			res[i] = d
		} else {
			res = append(res, d)
		}
	}
	if len(errs) > 0 {
		return nil, model.NewValidationError(errs...)
	}
	return res, nil
}
