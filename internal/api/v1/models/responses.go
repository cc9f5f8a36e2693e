package models

import (
	wwcp "wwcp-server/models"
)

// ChargingPoolsResponse represents the list of pools of an operator
type ChargingPoolsResponse struct {
	OperatorID string               `json:"operatorId"`
	Pools      []*wwcp.ChargingPool `json:"pools"`
	Count      int                  `json:"count"`
}

// EVSEsResponse represents the list of EVSEs of a pool
type EVSEsResponse struct {
	PoolID string       `json:"poolId"`
	EVSEs  []*wwcp.EVSE `json:"evses"`
	Count  int          `json:"count"`
}

// EVSEStatusResponse represents the latest known status of an EVSE
type EVSEStatusResponse struct {
	EVSEID string                 `json:"evseId"`
	Latest *wwcp.EVSEStatusUpdate `json:"latest"`
}

// BroadcasterResponse describes the status broadcaster
type BroadcasterResponse struct {
	ID      string   `json:"id"`
	Enabled bool     `json:"enabled"`
	Pushers []string `json:"pushers"`
}
