package models

import "time"

// UserSettings holds per-user editor preferences; one row per user
type UserSettings struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	UserID              uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Theme               string    `gorm:"size:20;default:system" json:"theme"`
	DefaultNodeColor    string    `gorm:"size:7;default:#3B82F6" json:"default_node_color"`
	DefaultTextColor    string    `gorm:"size:7;default:#FFFFFF" json:"default_text_color"`
	DefaultNodeShape    string    `gorm:"size:50;default:rectangle" json:"default_node_shape"`
	SnapToGrid          bool      `gorm:"default:false" json:"snap_to_grid"`
	GridSize            int       `gorm:"default:20" json:"grid_size"`
	AutoSave            bool      `gorm:"default:true" json:"auto_save"`
	DefaultRefsPageSize int       `gorm:"default:20" json:"default_refs_page_size"`
	DefaultRefsSort     string    `gorm:"size:50;default:imported-desc" json:"default_refs_sort"`
	EmailNotifications  bool      `gorm:"default:true" json:"email_notifications"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// DefaultSettings returns a settings row with every field at its default.
func DefaultSettings(userID uint) UserSettings {
	return UserSettings{
		UserID:              userID,
		Theme:               "system",
		DefaultNodeColor:    DefaultNodeColor,
		DefaultTextColor:    "#FFFFFF",
		DefaultNodeShape:    "rectangle",
		SnapToGrid:          false,
		GridSize:            20,
		AutoSave:            true,
		DefaultRefsPageSize: 20,
		DefaultRefsSort:     "imported-desc",
		EmailNotifications:  true,
	}
}
