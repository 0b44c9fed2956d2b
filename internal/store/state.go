package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edgard/taskbot/internal/task"
)

// farPast is the default for stop_ping_until: reminders are not muted.
var farPast = time.Unix(0, 0).UTC()

// state is the persisted form of the store. Field names match the blob
// format written by earlier versions of the bot, so an exported data.json
// can be imported unchanged.
type state struct {
	Tasks         []task.Task `json:"tasks"`
	PanelMessage  *panelPair  `json:"panel_message"`
	PingChannel   *snowflake  `json:"ping_channel"`
	PingRole      *snowflake  `json:"ping_role"`
	StopPingUntil time.Time   `json:"stop_ping_until"`
	LogChannel    *snowflake  `json:"log_channel"`
	WarnUsers     []snowflake `json:"warn_users"`
}

// snowflake is a platform identifier. It is written as a string and read
// from either a string or a bare JSON number.
type snowflake string

func (s *snowflake) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = snowflake(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	*s = snowflake(n.String())
	return nil
}

// panelPair is (message id, channel id), stored as a two element array.
type panelPair [2]snowflake

func optional(id string) *snowflake {
	if id == "" {
		return nil
	}
	s := snowflake(id)
	return &s
}

func (s *snowflake) value() string {
	if s == nil {
		return ""
	}
	return string(*s)
}
