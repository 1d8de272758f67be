package domain

// Setting is a key/value row of the operational settings table.
type Setting struct {
	Key   string `gorm:"primaryKey;size:64"`
	Value string `gorm:"type:text;not null"`
}

// Settings keys.
const (
	SettingInventoryOpen     = "inventory_open"
	SettingInventoryAutoMode = "inventory_auto_mode"
	SettingInventoryStartDay = "inventory_start_day"
	SettingInventoryEndDay   = "inventory_end_day"
)

// DefaultSettings are written once when the keys are missing.
var DefaultSettings = map[string]string{
	SettingInventoryOpen:     "0",
	SettingInventoryAutoMode: "0",
	SettingInventoryStartDay: "25",
	SettingInventoryEndDay:   "1",
}
