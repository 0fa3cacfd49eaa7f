package model

import "time"

// BookingStatus описывает состояние жизненного цикла бронирования.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusActive    BookingStatus = "active"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// PaymentStatus описывает состояние оплаты бронирования.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Booking - бронирование парковочного места пользователем.
// Значение неизменяемо: переходы состояний возвращают новую копию.
type Booking struct {
	ID                 string
	UserID             string
	SpotID             string
	VehicleID          string
	StartTime          time.Time
	EndTime            time.Time
	Status             BookingStatus
	PaymentStatus      PaymentStatus
	PaymentIntentID    string
	Amount             float64
	Discounts          []AppliedDiscount
	VATRate            float64
	VATAmount          float64
	TotalAmount        float64
	RefundAmount       float64
	CreatedAt          time.Time
	ConfirmedAt        *time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason *string
	// Version - токен оптимистичной блокировки строки бронирования.
	Version int64
}

// DurationMinutes возвращает длительность бронирования в минутах.
func (b Booking) DurationMinutes() int {
	return int(b.EndTime.Sub(b.StartTime) / time.Minute)
}

// Overlaps сообщает, пересекается ли бронирование с интервалом [start, end).
func (b Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && start.Before(b.EndTime)
}

// BlocksSpot сообщает, занимает ли бронирование место для проверки доступности.
func (b Booking) BlocksSpot() bool {
	return b.Status == BookingStatusConfirmed || b.Status == BookingStatusActive
}

// PaymentEventKind - тип события от платёжного шлюза.
type PaymentEventKind string

const (
	PaymentEventSucceeded PaymentEventKind = "succeeded"
	PaymentEventFailed    PaymentEventKind = "failed"
	PaymentEventRefunded  PaymentEventKind = "refunded"
)

// PaymentEvent - обратный вызов платёжного шлюза.
type PaymentEvent struct {
	EventID   string           `json:"eventId"`
	IntentID  string           `json:"intentId"`
	BookingID string           `json:"bookingId"`
	Kind      PaymentEventKind `json:"kind"`
	Reason    string           `json:"reason,omitempty"`
}
