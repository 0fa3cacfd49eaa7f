// Package validation содержит функции валидации входных данных.
package validation

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
)

const (
	maxIDLength    = 64
	minPlateLength = 2
	maxPlateLength = 10
)

// IsValidID проверяет идентификатор из пути запроса.
func IsValidID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for _, ch := range id {
		if !(unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '-' || ch == '_') {
			return false
		}
	}
	return true
}

// NormalizePlate приводит номерной знак к верхнему регистру и убирает пробелы и дефисы.
func NormalizePlate(plate string) string {
	var b strings.Builder
	b.Grow(len(plate))
	for _, ch := range plate {
		if unicode.IsSpace(ch) || ch == '-' {
			continue
		}
		b.WriteRune(unicode.ToUpper(ch))
	}
	return b.String()
}

// IsValidPlate проверяет номерной знак после нормализации.
func IsValidPlate(plate string) bool {
	p := NormalizePlate(plate)
	if len(p) < minPlateLength || len(p) > maxPlateLength {
		return false
	}
	for _, ch := range p {
		if !(ch >= 'A' && ch <= 'Z') && !(ch >= '0' && ch <= '9') {
			return false
		}
	}
	return true
}

// ParseWindow разбирает интервал в формате RFC 3339 и проверяет, что начало раньше конца.
func ParseWindow(startRaw, endRaw string) (time.Time, time.Time, error) {
	var errs []string

	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		errs = append(errs, fmt.Sprintf("start: expected RFC 3339 time, got %q", startRaw))
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		errs = append(errs, fmt.Sprintf("end: expected RFC 3339 time, got %q", endRaw))
	}
	if len(errs) == 0 && !start.Before(end) {
		errs = append(errs, "start time must be before end time")
	}

	if len(errs) > 0 {
		return time.Time{}, time.Time{}, model.NewValidationError(errs...)
	}
	return start, end, nil
}

// DiscountErrors возвращает нарушения для запроса скидки. Льготные скидки
// считаются по каталогу и не принимают value, promo и loyalty требуют положительного value.
func DiscountErrors(d model.DiscountRequest) []string {
	switch d.Type {
	case model.DiscountSenior, model.DiscountPWD:
		if d.Value != 0 {
			return []string{fmt.Sprintf("discount %s does not accept a value", d.Type)}
		}
	case model.DiscountPromo, model.DiscountLoyalty:
		if math.IsNaN(d.Value) || math.IsInf(d.Value, 0) || d.Value <= 0 {
			return []string{fmt.Sprintf("discount %s requires a positive value", d.Type)}
		}
	default:
		return []string{fmt.Sprintf("unknown discount type %q", d.Type)}
	}
	return nil
}
