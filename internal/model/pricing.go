package model

import "time"

// VehicleTypeRate задаёт часовую ставку для конкретного типа транспорта.
type VehicleTypeRate struct {
	VehicleType VehicleType `json:"vehicleType"`
	Rate        float64     `json:"rate"`
}

// TimeBasedRate - множитель для интервала внутри дня недели.
// Минуты отсчитываются от полуночи, обе границы включаются.
type TimeBasedRate struct {
	DayOfWeek   int     `json:"dayOfWeek"`
	StartMinute int     `json:"startMinute"`
	EndMinute   int     `json:"endMinute"`
	Multiplier  float64 `json:"multiplier"`
	Name        string  `json:"name"`
}

// HolidayRate - множитель для праздничной даты.
// Повторяющиеся праздники сравниваются только по месяцу и дню.
type HolidayRate struct {
	Date        time.Time `json:"date"`
	Multiplier  float64   `json:"multiplier"`
	IsRecurring bool      `json:"isRecurring"`
	Name        string    `json:"name"`
}

// PricingConfig - конфигурация цены на одном уровне иерархии.
type PricingConfig struct {
	BaseRate            float64           `json:"baseRate"`
	VehicleTypeRates    []VehicleTypeRate `json:"vehicleTypeRates,omitempty"`
	TimeBasedRates      []TimeBasedRate   `json:"timeBasedRates,omitempty"`
	HolidayRates        []HolidayRate     `json:"holidayRates,omitempty"`
	OccupancyMultiplier float64           `json:"occupancyMultiplier"`
	VATRate             float64           `json:"vatRate"`
}

// DiscountType - категория скидки.
type DiscountType string

const (
	DiscountSenior  DiscountType = "senior"
	DiscountPWD     DiscountType = "pwd"
	DiscountPromo   DiscountType = "promo"
	DiscountLoyalty DiscountType = "loyalty"
)

// DiscountRequest - запрос скидки из каталога. Value задаёт сумму для promo и loyalty.
type DiscountRequest struct {
	Type  DiscountType `json:"type"`
	Value float64      `json:"value,omitempty"`
}

// AppliedDiscount - скидка, применённая к бронированию.
type AppliedDiscount struct {
	Type        DiscountType `json:"type"`
	Amount      float64      `json:"amount"`
	IsVATExempt bool         `json:"isVatExempt"`
}
