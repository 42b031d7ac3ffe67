package model

import "time"

// URLMapping is a short code bound to the long URL it resolves to.
// Mappings are immutable once stored; deleting one removes its click events.
type URLMapping struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	ShortCode string    `json:"short_code" gorm:"column:short_code;size:32;not null;uniqueIndex"`
	LongURL   string    `json:"long_url" gorm:"column:long_url;type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName pins the table created by the migrations.
func (URLMapping) TableName() string {
	return "urls"
}
