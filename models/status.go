package models

import (
	"fmt"
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"
)

// EVSEStatusUpdate represents an operational status change of an EVSE
type EVSEStatusUpdate struct {
	EVSEID    EVSEID                 `json:"evseId"`
	OldStatus core.ChargePointStatus `json:"oldStatus,omitempty"`
	NewStatus core.ChargePointStatus `json:"newStatus"`
	Timestamp *types.DateTime        `json:"timestamp,omitempty"`
}

// ChargingPoolAdminStatusUpdate represents an administrative status change of a pool
type ChargingPoolAdminStatusUpdate struct {
	PoolID    ChargingPoolID        `json:"poolId"`
	OldStatus core.AvailabilityType `json:"oldStatus,omitempty"`
	NewStatus core.AvailabilityType `json:"newStatus"`
	Timestamp *types.DateTime       `json:"timestamp,omitempty"`
}

// NewEVSEStatusUpdate creates a status update stamped with the given time
func NewEVSEStatusUpdate(id EVSEID, oldStatus, newStatus core.ChargePointStatus, at time.Time) EVSEStatusUpdate {
	return EVSEStatusUpdate{
		EVSEID:    id,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Timestamp: types.NewDateTime(at),
	}
}

// NewChargingPoolAdminStatusUpdate creates an admin status update stamped with the given time
func NewChargingPoolAdminStatusUpdate(id ChargingPoolID, oldStatus, newStatus core.AvailabilityType, at time.Time) ChargingPoolAdminStatusUpdate {
	return ChargingPoolAdminStatusUpdate{
		PoolID:    id,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Timestamp: types.NewDateTime(at),
	}
}

var evseStatuses = []core.ChargePointStatus{
	core.ChargePointStatusAvailable,
	core.ChargePointStatusPreparing,
	core.ChargePointStatusCharging,
	core.ChargePointStatusSuspendedEVSE,
	core.ChargePointStatusSuspendedEV,
	core.ChargePointStatusFinishing,
	core.ChargePointStatusReserved,
	core.ChargePointStatusUnavailable,
	core.ChargePointStatusFaulted,
}

// ValidateEVSEStatus checks that status is one of the OCPP 1.6 connector states
func ValidateEVSEStatus(status core.ChargePointStatus) error {
	for _, s := range evseStatuses {
		if status == s {
			return nil
		}
	}
	return fmt.Errorf("invalid EVSE status %q", status)
}

// ValidateAdminStatus checks that status is Operative or Inoperative
func ValidateAdminStatus(status core.AvailabilityType) error {
	switch status {
	case core.AvailabilityTypeOperative, core.AvailabilityTypeInoperative:
		return nil
	}
	return fmt.Errorf("invalid admin status %q", status)
}
