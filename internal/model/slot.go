package model

import "time"

// Форматы полей слота. Фиксированная ширина позволяет сравнивать строки лексикографически.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "available"
	SlotStatusBooked    SlotStatus = "booked"
	SlotStatusCanceled  SlotStatus = "canceled"
)

// Slot - опубликованный специалистом интервал времени
type Slot struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Date      string    `json:"date"`       // YYYY-MM-DD
	StartTime string    `json:"start_time"` // HH:MM
	EndTime   string    `json:"end_time"`   // HH:MM
	Booked    bool      `json:"booked"`
	Canceled  bool      `json:"canceled"`
	PatientID *string   `json:"patient_id"` // nil, если слот не занят
	CreatedAt time.Time `json:"created_at"`
}

// IsAvailable - слот свободен и не отозван
func (s *Slot) IsAvailable() bool {
	return !s.Booked && !s.Canceled
}

// IsActiveBooking - слот занят пациентом и не отозван
func (s *Slot) IsActiveBooking() bool {
	return s.Booked && !s.Canceled
}

// Status возвращает производный статус; отзыв важнее брони
func (s *Slot) Status() SlotStatus {
	switch {
	case s.Canceled:
		return SlotStatusCanceled
	case s.Booked:
		return SlotStatusBooked
	default:
		return SlotStatusAvailable
	}
}

// HeldBy проверяет, что слот занят указанным пациентом
func (s *Slot) HeldBy(patientID string) bool {
	return s.PatientID != nil && *s.PatientID == patientID
}

// Clone возвращает глубокую копию слота
func (s *Slot) Clone() *Slot {
	c := *s
	if s.PatientID != nil {
		p := *s.PatientID
		c.PatientID = &p
	}
	return &c
}

// Equal сравнивает все поля слота
func (s *Slot) Equal(o *Slot) bool {
	if s == nil || o == nil {
		return s == o
	}
	if (s.PatientID == nil) != (o.PatientID == nil) {
		return false
	}
	if s.PatientID != nil && *s.PatientID != *o.PatientID {
		return false
	}
	return s.ID == o.ID &&
		s.OwnerID == o.OwnerID &&
		s.Date == o.Date &&
		s.StartTime == o.StartTime &&
		s.EndTime == o.EndTime &&
		s.Booked == o.Booked &&
		s.Canceled == o.Canceled &&
		s.CreatedAt.Equal(o.CreatedAt)
}

// Less задаёт порядок (date, start_time, id)
func (s *Slot) Less(o *Slot) bool {
	if s.Date != o.Date {
		return s.Date < o.Date
	}
	if s.StartTime != o.StartTime {
		return s.StartTime < o.StartTime
	}
	return s.ID < o.ID
}
