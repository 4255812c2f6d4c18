package models

import (
	"time"
)

type ChannelMapping struct {
	Domain    string    `json:"domain" gorm:"primaryKey;type:text"`
	ChannelID string    `json:"channelId" gorm:"type:text;not null"`
	Position  int       `json:"position" gorm:"not null;default:0"`
	CDate     time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

func (ChannelMapping) TableName() string {
	return "chat_channels"
}
