package models

import (
	"github.com/google/uuid"
)

const (
	EventRobotConnect    = "robot_connect"
	EventRobotHealthy    = "robot_healthy"
	EventRobotDisconnect = "robot_disconnect"
	EventRegisterSuccess = "register_success"
	EventSessionStart    = "session_start"
	EventSessionEnd      = "session_end"
)

type ConnectReq struct {
	Key      string `json:"key"`
	Password string `json:"password"`
	Protocol string `json:"protocol"`
}

type ConnectResp struct {
	Robot Robot `json:"robot"`
}

type Robot struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`
	Type      string    `json:"type"`
}

// Health is the periodic status report sent to the hub.
type Health struct {
	Status      string    `json:"status"`
	SessionId   uuid.UUID `json:"session_id"`
	Connected   bool      `json:"connected"`
	Ticks       uint64    `json:"ticks"`
	FailedTicks uint64    `json:"failed_ticks"`
	DrivePct    float64   `json:"drive_pct"`
	SteerPct    float64   `json:"steer_pct"`
	CPUTempC    float64   `json:"cpu_temp_c"`
	RxBytes     uint64    `json:"rx_bytes"`
	TxBytes     uint64    `json:"tx_bytes"`
	RxDropped   uint64    `json:"rx_dropped"`
	TxDropped   uint64    `json:"tx_dropped"`
	TimeStamp   int64     `json:"time_stamp"`
}

type SessionEvent struct {
	SessionId  uuid.UUID `json:"session_id"`
	RemoteAddr string    `json:"remote_addr"`
	Reason     string    `json:"reason,omitempty"`
	TimeStamp  int64     `json:"time_stamp"`
}
