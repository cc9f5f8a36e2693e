package models

import (
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
)

// Identifiers of the charging infrastructure, e.g. "DE*GEF" for an operator
// and "DE*GEF*P0001" for one of its pools.
type (
	ChargingStationOperatorID string
	ChargingPoolID            string
	ChargingStationID         string
	EVSEID                    string
	EnergyMeterID             string
)

func (id ChargingStationOperatorID) String() string { return string(id) }
func (id ChargingPoolID) String() string            { return string(id) }
func (id ChargingStationID) String() string         { return string(id) }
func (id EVSEID) String() string                    { return string(id) }
func (id EnergyMeterID) String() string             { return string(id) }

// ChargingStationOperator owns charging pools
type ChargingStationOperator struct {
	ID          ChargingStationOperatorID `json:"id"`
	Name        string                    `json:"name"`
	AdminStatus core.AvailabilityType     `json:"adminStatus"`
}

func (o *ChargingStationOperator) EntityID() ChargingStationOperatorID {
	if o == nil {
		return ""
	}
	return o.ID
}

func (o *ChargingStationOperator) OwnerID() string { return string(o.EntityID()) }

// IsOperative reports whether the operator accepts commands
func (o *ChargingStationOperator) IsOperative() bool {
	return o.AdminStatus != core.AvailabilityTypeInoperative
}

// ChargingPool represents a site with one or more charging stations
type ChargingPool struct {
	ID          ChargingPoolID            `json:"id"`
	OperatorID  ChargingStationOperatorID `json:"operatorId"`
	Name        string                    `json:"name"`
	Address     string                    `json:"address,omitempty"`
	AdminStatus core.AvailabilityType     `json:"adminStatus"`
	UpdatedAt   time.Time                 `json:"updatedAt"`
}

func (p *ChargingPool) EntityID() ChargingPoolID {
	if p == nil {
		return ""
	}
	return p.ID
}

func (p *ChargingPool) OwnerID() string { return string(p.EntityID()) }

func (p *ChargingPool) IsOperative() bool {
	return p.AdminStatus != core.AvailabilityTypeInoperative
}

// Clone returns a copy safe to hand out of the registry
func (p *ChargingPool) Clone() *ChargingPool {
	c := *p
	return &c
}

// EVSE is a single charging point; its operational status follows the OCPP 1.6
// connector status.
type EVSE struct {
	ID          EVSEID                 `json:"id"`
	PoolID      ChargingPoolID         `json:"poolId"`
	StationID   ChargingStationID      `json:"stationId,omitempty"`
	ConnectorID int                    `json:"connectorId"`
	MaxPower    float64                `json:"maxPower,omitempty"` // kW
	Status      core.ChargePointStatus `json:"status"`
	AdminStatus core.AvailabilityType  `json:"adminStatus"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

func (e *EVSE) EntityID() EVSEID {
	if e == nil {
		return ""
	}
	return e.ID
}

func (e *EVSE) Clone() *EVSE {
	c := *e
	return &c
}

// EnergyMeter measures the energy delivered by an EVSE or a whole pool
type EnergyMeter struct {
	ID           EnergyMeterID  `json:"id"`
	PoolID       ChargingPoolID `json:"poolId"`
	EVSEID       EVSEID         `json:"evseId,omitempty"`
	Manufacturer string         `json:"manufacturer,omitempty"`
	Model        string         `json:"model,omitempty"`
	SerialNumber string         `json:"serialNumber,omitempty"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (m *EnergyMeter) EntityID() EnergyMeterID {
	if m == nil {
		return ""
	}
	return m.ID
}

func (m *EnergyMeter) Clone() *EnergyMeter {
	c := *m
	return &c
}
