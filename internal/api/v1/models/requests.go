package models

import (
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"

	wwcp "wwcp-server/models"
)

// RegisterOperatorRequest represents a request to register a charging station operator
type RegisterOperatorRequest struct {
	ID          string                `json:"id" validate:"required"`
	Name        string                `json:"name"`
	AdminStatus core.AvailabilityType `json:"adminStatus,omitempty"`
}

// ChargingPoolRequest describes one charging pool. The operator comes from the path.
type ChargingPoolRequest struct {
	ID          string                `json:"id" validate:"required"`
	Name        string                `json:"name"`
	Address     string                `json:"address,omitempty"`
	AdminStatus core.AvailabilityType `json:"adminStatus,omitempty"`
}

// AddChargingPoolsRequest represents a request to add one or more charging pools
type AddChargingPoolsRequest struct {
	Pools []ChargingPoolRequest `json:"pools" validate:"required,min=1"`
}

// EVSERequest describes one EVSE. The charging pool comes from the path.
type EVSERequest struct {
	ID          string                 `json:"id" validate:"required"`
	StationID   string                 `json:"stationId,omitempty"`
	ConnectorID int                    `json:"connectorId" validate:"min=0"`
	MaxPower    float64                `json:"maxPower,omitempty"`
	Status      core.ChargePointStatus `json:"status,omitempty"`
}

// AddEVSEsRequest represents a request to add one or more EVSEs to a pool
type AddEVSEsRequest struct {
	EVSEs []EVSERequest `json:"evses" validate:"required,min=1"`
}

// AdminStatusRequest represents a request to change an administrative status
type AdminStatusRequest struct {
	Status core.AvailabilityType `json:"status" validate:"required,oneof=Operative Inoperative"`
}

// PushEVSEStatusRequest represents a request to broadcast EVSE status updates.
// With Async set the push is only enqueued and answered with Enqueued.
type PushEVSEStatusRequest struct {
	SenderID string                  `json:"senderId,omitempty"`
	Async    bool                    `json:"async,omitempty"`
	Updates  []wwcp.EVSEStatusUpdate `json:"updates"`
}

// ToChargingPool converts the request into a pool of the given operator
func (r ChargingPoolRequest) ToChargingPool(operatorID string) *wwcp.ChargingPool {
	return &wwcp.ChargingPool{
		ID:          wwcp.ChargingPoolID(r.ID),
		OperatorID:  wwcp.ChargingStationOperatorID(operatorID),
		Name:        r.Name,
		Address:     r.Address,
		AdminStatus: r.AdminStatus,
	}
}

// ToEVSE converts the request into an EVSE of the given pool
func (r EVSERequest) ToEVSE(poolID string) *wwcp.EVSE {
	return &wwcp.EVSE{
		ID:          wwcp.EVSEID(r.ID),
		PoolID:      wwcp.ChargingPoolID(poolID),
		StationID:   wwcp.ChargingStationID(r.StationID),
		ConnectorID: r.ConnectorID,
		MaxPower:    r.MaxPower,
		Status:      r.Status,
	}
}
