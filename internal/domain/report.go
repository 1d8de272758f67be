package domain

import "time"

// InventoryReport is a submitted stock count. BranchName and UserName are snapshots.
type InventoryReport struct {
	ID         uint   `gorm:"primaryKey"`
	BranchName string `gorm:"size:255;not null"`
	UserID     int64  `gorm:"index;not null"`
	UserName   string `gorm:"size:255"`
	// ReportData holds one "name: qty" line per catalog item.
	ReportData string    `gorm:"type:text;not null"`
	Sector     Sector    `gorm:"size:16;not null;default:full"`
	CreatedAt  time.Time `gorm:"index"`
}
