// Package model содержит доменные сущности сервиса бронирования парковок.
package model

import "time"

// SpotStatus описывает текущее состояние парковочного места.
type SpotStatus string

const (
	SpotStatusAvailable   SpotStatus = "available"
	SpotStatusOccupied    SpotStatus = "occupied"
	SpotStatusReserved    SpotStatus = "reserved"
	SpotStatusMaintenance SpotStatus = "maintenance"
)

// VehicleType описывает тип транспортного средства.
type VehicleType string

const (
	VehicleCar        VehicleType = "car"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleSUV        VehicleType = "suv"
	VehicleVan        VehicleType = "van"
	VehicleTruck      VehicleType = "truck"
)

// ParkingType определяет политику валидации и ценообразования для места.
// Пустое значение означает обычное место оператора без типовой политики.
type ParkingType string

const (
	ParkingTypeStandard ParkingType = ""
	ParkingTypeHosted   ParkingType = "hosted"
	ParkingTypeStreet   ParkingType = "street"
	ParkingTypeFacility ParkingType = "facility"
)

// Location - верхний уровень иерархии парковочных ресурсов.
type Location struct {
	ID         string
	OperatorID string
	Name       string
	Address    string
	Pricing    *PricingConfig
}

// Section - секция внутри локации.
type Section struct {
	ID         string
	LocationID string
	Name       string
	Pricing    *PricingConfig
}

// Zone - зона внутри секции.
type Zone struct {
	ID        string
	SectionID string
	Name      string
	Pricing   *PricingConfig
}

// Spot - парковочное место, лист иерархии.
type Spot struct {
	ID          string
	ZoneID      string
	Number      string
	Status      SpotStatus
	VehicleType VehicleType
	ParkingType ParkingType
	Latitude    float64
	Longitude   float64
	Amenities   []string
	Floor       int
	Pricing     *PricingConfig
	// Version увеличивается при каждой смене статуса и служит токеном оптимистичной блокировки.
	Version int64
}

// SpotHierarchy содержит место вместе со всеми его предками.
type SpotHierarchy struct {
	Spot     Spot
	Zone     Zone
	Section  Section
	Location Location
}

// User представляет пользователя, известного системе бронирования.
type User struct {
	ID       string
	UserType string
}

// Vehicle описывает транспортное средство пользователя.
type Vehicle struct {
	ID          string
	UserID      string
	Type        VehicleType
	PlateNumber string
	IsDefault   bool
	// HeightCm - высота транспорта, 0 если неизвестна.
	HeightCm int
}

// SpotReservation - временная блокировка места на время оформления брони.
type SpotReservation struct {
	ID        string
	SpotID    string
	UserID    string
	StartTime time.Time
	EndTime   time.Time
	ExpiresAt time.Time
}

// Expired сообщает, истёк ли срок удержания места на момент now.
func (r SpotReservation) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Payout описывает распределение выручки между платформой и владельцем места.
type Payout struct {
	ID          string
	BookingID   string
	HostID      string
	Gross       float64
	PlatformFee float64
	HostNet     float64
	CreatedAt   time.Time
}

// NotificationType описывает событие, о котором уведомляется пользователь.
type NotificationType string

const (
	NotificationBookingConfirmed NotificationType = "booking_confirmed"
	NotificationBookingStarted   NotificationType = "booking_started"
	NotificationBookingCompleted NotificationType = "booking_completed"
	NotificationBookingCancelled NotificationType = "booking_cancelled"
	NotificationBookingExtended  NotificationType = "booking_extended"
	NotificationPaymentConfirmed NotificationType = "payment_confirmed"
	NotificationPaymentFailed    NotificationType = "payment_failed"
)

// Notification - запись для внешнего канала уведомлений.
type Notification struct {
	UserID    string           `json:"userId"`
	BookingID string           `json:"bookingId"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
}

// OccupancyUpdate публикуется при изменении занятости места.
type OccupancyUpdate struct {
	SpotID    string     `json:"spotId"`
	ZoneID    string     `json:"zoneId,omitempty"`
	Status    SpotStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
}

// Роли пользователей, которые выдаёт внешний провайдер идентификации.
const (
	UserTypeUser     = "user"
	UserTypeHost     = "host"
	UserTypeOperator = "operator"
	UserTypeAdmin    = "admin"
)

// Identity - проверенные сведения о вызывающем пользователе.
type Identity struct {
	UserID     string
	UserType   string
	OperatorID string
}

// IsStaff сообщает, может ли пользователь управлять чужими бронированиями.
func (i Identity) IsStaff() bool {
	return i.UserType == UserTypeOperator || i.UserType == UserTypeAdmin
}
