package service

import "errors"

// Ошибки бизнес-логики. Оборачиваются через fmt.Errorf("%w: ...") и проверяются errors.Is.
var (
	ErrNotFound                  = errors.New("not found")
	ErrForbidden                 = errors.New("forbidden")
	ErrInvalidArgument           = errors.New("invalid argument")
	ErrInvalidStateTransition    = errors.New("invalid state transition")
	ErrSlotUnavailable           = errors.New("slot unavailable")
	ErrNoSponsoredSeatsAvailable = errors.New("no sponsored seats available")
	ErrAlreadyReviewed           = errors.New("already reviewed")
	ErrConflict                  = errors.New("conflict")
)
