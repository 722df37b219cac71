package service

import (
	"fmt"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/models"
)

// Action is an input of the reservation state machine.
type Action string

const (
	ActionReserve Action = "reserve"
	ActionPay     Action = "pay"
)

// Next returns the status a room moves to when action is applied in status from.
// Paying a free room is accepted unless strict is set.
func Next(from models.RoomStatus, action Action, strict bool) (models.RoomStatus, error) {
	if !from.Valid() {
		return "", fmt.Errorf("%w: status %q", domain.ErrInvalidState, from)
	}

	switch action {
	case ActionReserve:
		if from != models.StatusFree {
			return "", domain.ErrInvalidState
		}
		return models.StatusReserved, nil
	case ActionPay:
		if strict && from != models.StatusReserved {
			return "", domain.ErrInvalidState
		}
		return models.StatusFree, nil
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownTransition, action)
	}
}
