package types

import "time"

// Users are wallet holders; created lazily on first balance touch.
type User struct {
	Wallet    string  `gorm:"primaryKey;size:64" json:"wallet"`
	Balance   float64 `gorm:"not null;default:10" json:"balance"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Projects submitted for the hackathon showcase.
type Project struct {
	ID              uint64   `gorm:"primaryKey" json:"id"`
	Title           string   `gorm:"size:255;not null" json:"title"`
	Description     string   `gorm:"type:text;not null" json:"description"`
	Image           string   `gorm:"size:512" json:"image"`
	Owner           string   `gorm:"size:64;index;not null" json:"owner"`
	DeliberationMap *string  `gorm:"type:text" json:"deliberationMap"`
	AISummary       *string  `gorm:"type:text" json:"aiSummary"`
	Rank            *float64 `json:"rank"`
	// Legacy per-wallet rating path, serialized wallet->rating.
	Ratings   string    `gorm:"type:text" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
	Comments  []Comment `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
}

// Comments carry a weight funded by token boosts. At most one non-premium
// comment per (wallet, project).
type Comment struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	ProjectID uint64    `gorm:"index;not null" json:"projectId"`
	Wallet    string    `gorm:"size:64;index;not null" json:"wallet"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Weight    float64   `gorm:"not null;default:1" json:"weight"`
	Premium   bool      `gorm:"default:false" json:"premium"`
	Rating    *int      `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
}

// BalanceCredit journals confirmed deposits; TxRef is unique so a retried
// confirmation never credits twice.
type BalanceCredit struct {
	ID        uint64  `gorm:"primaryKey"`
	Wallet    string  `gorm:"size:64;index;not null"`
	Amount    float64 `gorm:"not null"`
	TxRef     string  `gorm:"size:128;uniqueIndex;not null"`
	CreatedAt time.Time
}
