package reservations

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type wireReservation struct {
	ID        string `json:"id" validate:"required"`
	GuestName string `json:"guest_name"`
	CheckIn   string `json:"check_in" validate:"required,instant"`
	CheckOut  string `json:"check_out" validate:"required,instant"`
	Property  string `json:"property"`
}

type wirePagination struct {
	Page    int  `json:"page" validate:"gte=0"`
	PerPage int  `json:"per_page" validate:"gte=0"`
	Total   int  `json:"total" validate:"gte=0"`
	HasMore bool `json:"has_more"`
}

type wirePage struct {
	Data       []wireReservation `json:"data"`
	Pagination *wirePagination   `json:"pagination" validate:"required"`
}

// parseInstant reads an RFC3339 timestamp or a bare calendar date (midnight
// UTC). The result is always in UTC.
func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(dateLayout, s)
}

// validInstant backs the "instant" validation tag.
func validInstant(fl validator.FieldLevel) bool {
	_, err := parseInstant(fl.Field().String())
	return err == nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("instant", validInstant)
	return v
}

// typed converts a validated wire reservation.
func (w wireReservation) typed() (Reservation, error) {
	in, err := parseInstant(w.CheckIn)
	if err != nil {
		return Reservation{}, err
	}
	out, err := parseInstant(w.CheckOut)
	if err != nil {
		return Reservation{}, err
	}
	return Reservation{
		ID:        w.ID,
		GuestName: w.GuestName,
		CheckIn:   in,
		CheckOut:  out,
		Property:  w.Property,
	}, nil
}
