package domain

import (
	"time"

	"gorm.io/datatypes"
)

// AppStatistics is one day's counter snapshot per (admin user, device).
// Sync replaces the row for the current day; history accumulates by date.
type AppStatistics struct {
	ID                  uint       `gorm:"primaryKey" json:"-"`
	AdminUserID         uint       `gorm:"uniqueIndex:uidx_app_statistics_day;not null" json:"admin_user_id"`
	DeviceID            string     `gorm:"size:64;uniqueIndex:uidx_app_statistics_day" json:"device_id,omitempty"`
	Date                string     `gorm:"size:10;uniqueIndex:uidx_app_statistics_day;not null" json:"date"`
	TotalVideos         int        `gorm:"not null;default:0" json:"total_videos"`
	VideosWithViews     int        `gorm:"not null;default:0" json:"videos_with_views"`
	TotalViews          int64      `gorm:"not null;default:0" json:"total_views"`
	TotalFloors         int        `gorm:"not null;default:0" json:"total_floors"`
	TotalRooms          int        `gorm:"not null;default:0" json:"total_rooms"`
	PieChartVideoCount  int        `gorm:"not null;default:0" json:"pie_chart_video_count"`
	LineChartVideoCount int        `gorm:"not null;default:0" json:"line_chart_video_count"`
	BarChartVideoCount  int        `gorm:"not null;default:0" json:"bar_chart_video_count"`
	LineRaceVideoCount  int        `gorm:"not null;default:0" json:"line_race_video_count"`
	TimeRangeStart      *time.Time `json:"time_range_start,omitempty"`
	TimeRangeEnd        *time.Time `json:"time_range_end,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (AppStatistics) TableName() string { return "app_statistics" }

// VideoStatistics is keyed by (admin user, video). ViewHistory maps ISO
// dates to daily view counts and is replaced wholesale on sync, never
// summed.
type VideoStatistics struct {
	ID          uint              `gorm:"primaryKey" json:"-"`
	AdminUserID uint              `gorm:"uniqueIndex:uidx_video_statistics_video;not null" json:"admin_user_id"`
	VideoID     string            `gorm:"size:64;uniqueIndex:uidx_video_statistics_video;not null" json:"video_id"`
	DeviceID    string            `gorm:"size:64;index" json:"device_id,omitempty"`
	VideoTitle  string            `gorm:"size:256" json:"video_title"`
	Views       int64             `gorm:"not null;default:0" json:"views"`
	LastViewed  *time.Time        `json:"last_viewed,omitempty"`
	ViewHistory datatypes.JSONMap `json:"view_history"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (VideoStatistics) TableName() string { return "video_statistics" }

type FloorStatistics struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	AdminUserID uint      `gorm:"uniqueIndex:uidx_floor_statistics_floor;not null" json:"admin_user_id"`
	FloorID     string    `gorm:"size:64;uniqueIndex:uidx_floor_statistics_floor;not null" json:"floor_id"`
	FloorName   string    `gorm:"size:128" json:"floor_name"`
	RoomCount   int       `gorm:"not null;default:0" json:"room_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (FloorStatistics) TableName() string { return "floor_statistics" }

// CSVStatistics holds raw exported statistics files; only the newest row per
// admin user is ever served.
type CSVStatistics struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	AdminUserID uint      `gorm:"index;not null" json:"admin_user_id"`
	DeviceID    string    `gorm:"size:64;index" json:"device_id,omitempty"`
	Filename    string    `gorm:"size:256" json:"filename"`
	Content     string    `gorm:"type:text" json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (CSVStatistics) TableName() string { return "csv_statistics" }

// Models returns every persisted type, in migration order.
func Models() []any {
	return []any{
		&AdminUser{},
		&WebsiteUser{},
		&WebsiteSession{},
		&DeviceSession{},
		&PasswordResetRequest{},
		&AppStatistics{},
		&VideoStatistics{},
		&FloorStatistics{},
		&CSVStatistics{},
	}
}
