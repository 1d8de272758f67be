package domain

// Branch is a warehouse location. The head office is a branch with a configured name.
type Branch struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:255;uniqueIndex;not null"`
}

// Item is a catalog entry. Deleted items stay in the table with Active=false.
type Item struct {
	ID     uint   `gorm:"primaryKey"`
	Name   string `gorm:"size:255;uniqueIndex;not null"`
	Active bool   `gorm:"not null;default:true"`
}

// Contact is an entry of the staff phone book.
type Contact struct {
	ID         uint   `gorm:"primaryKey"`
	Department string `gorm:"size:255;not null"`
	Info       string `gorm:"type:text;not null"`
}
