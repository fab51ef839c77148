package models

import "time"

// StateEvent 状态变更审计记录（只追加）
type StateEvent struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	StatefulType  string    `gorm:"type:varchar(32);index:idx_state_events_stateful;not null" json:"stateful_type"`
	StatefulID    uint      `gorm:"index:idx_state_events_stateful;not null" json:"stateful_id"`
	Name          string    `gorm:"type:varchar(32);not null" json:"name"`
	PreviousState string    `gorm:"type:varchar(24)" json:"previous_state"`
	NextState     string    `gorm:"type:varchar(24)" json:"next_state"`
	UserID        uint      `gorm:"index;not null;default:0" json:"user_id"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (StateEvent) TableName() string {
	return "state_events"
}
