package model

import "time"

// WeeklyWindow - интервал доступности внутри дня недели (минуты от полуночи).
type WeeklyWindow struct {
	DayOfWeek   int `json:"dayOfWeek"`
	StartMinute int `json:"startMinute"`
	EndMinute   int `json:"endMinute"`
}

// ListingTimeRate - множитель владельца для времени суток.
type ListingTimeRate struct {
	StartMinute int     `json:"startMinute"`
	EndMinute   int     `json:"endMinute"`
	Multiplier  float64 `json:"multiplier"`
}

// SeasonalRate - сезонный множитель владельца, границы включительно.
type SeasonalRate struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Multiplier float64   `json:"multiplier"`
	Name       string    `json:"name"`
}

// HostedListing - объявление частного владельца о сдаче места.
type HostedListing struct {
	ID                   string
	SpotID               string
	HostID               string
	IsActive             bool
	HourlyRate           float64
	MinDurationMinutes   int
	MaxAdvanceDays       int
	Schedule             []WeeklyWindow
	RequireVerifiedGuest bool
	MinGuestRating       float64
	TimeRates            []ListingTimeRate
	WeekendMultiplier    float64
	SeasonalRates        []SeasonalRate
	AccessInstructions   string
}

// GuestProfile - сведения о госте, которые учитывает владелец.
type GuestProfile struct {
	UserID     string
	IsVerified bool
	Rating     float64
}

// StreetRegulation - правила уличной парковки для места.
// Если EnforcementStartMinute больше EnforcementEndMinute, часы контроля переходят через полночь.
type StreetRegulation struct {
	SpotID                 string
	EnforcementDays        []int
	EnforcementStartMinute int
	EnforcementEndMinute   int
	MaxDurationMinutes     int
	AllowedVehicleTypes    []VehicleType
	PermitRequired         bool
	PermitZone             string
	AccessInstructions     string
}

// TemporaryRestriction - временное ограничение (стройка, мероприятие).
type TemporaryRestriction struct {
	SpotID string
	Start  time.Time
	End    time.Time
	Reason string
}

// ParkingPermit - разрешение пользователя на парковку в зоне.
type ParkingPermit struct {
	UserID     string
	Zone       string
	IsActive   bool
	ValidFrom  time.Time
	ValidUntil time.Time
}

// ValidAt сообщает, действует ли разрешение в момент t.
func (p ParkingPermit) ValidAt(t time.Time) bool {
	return p.IsActive && !t.Before(p.ValidFrom) && t.Before(p.ValidUntil)
}

// FacilityPricingModel - модель оплаты в паркинге.
type FacilityPricingModel string

const (
	FacilityPricingFlat      FacilityPricingModel = "flat"
	FacilityPricingTiered    FacilityPricingModel = "tiered"
	FacilityPricingPayOnExit FacilityPricingModel = "pay_on_exit"
)

// DurationTier - ступень тарифа по длительности.
type DurationTier struct {
	UpToMinutes int     `json:"upToMinutes"`
	Price       float64 `json:"price"`
}

// Facility - многоуровневый или закрытый паркинг.
type Facility struct {
	ID                       string
	Name                     string
	Is24Hours                bool
	OpenMinute               int
	CloseMinute              int
	HeightLimitCm            int
	RequiresAccessCredential bool
	ReservationOnly          bool
	PricingModel             FacilityPricingModel
	FlatRate                 float64
	Tiers                    []DurationTier
	PremiumMultiplier        float64
	AccessInstructions       string
}

// MaintenanceClosure - период закрытия паркинга на обслуживание.
type MaintenanceClosure struct {
	FacilityID string
	Start      time.Time
	End        time.Time
	Reason     string
}
