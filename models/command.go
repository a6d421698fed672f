package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdSyncNow      CommandType = "sync_now"
	CmdSyncBuilding CommandType = "sync_building"
	CmdPause        CommandType = "pause"
	CmdResume       CommandType = "resume"
)

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Building     string `json:"building,omitempty"`
	Mode         string `json:"mode,omitempty"`
	PropertyType string `json:"property_type,omitempty"`
}
