package models

import "time"

// Gift is a catalog item. Limited gifts are only purchasable inside their
// sale window.
type Gift struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"size:100;not null" json:"name"`
	Price     int64      `gorm:"not null" json:"price"`
	Icon      string     `gorm:"size:50;not null" json:"icon"`
	Color     string     `gorm:"size:20;not null" json:"color"`
	Rarity    string     `gorm:"size:20;not null" json:"rarity"`
	IsLimited bool       `gorm:"default:false" json:"is_limited"`
	SaleStart *time.Time `json:"sale_start"`
	SaleEnd   *time.Time `json:"sale_end"`
	CreatedAt time.Time  `json:"created_at"`
}

// Available reports whether the gift can be purchased at the given instant.
func (g Gift) Available(now time.Time) bool {
	if !g.IsLimited {
		return true
	}
	if g.SaleStart != nil && now.Before(*g.SaleStart) {
		return false
	}
	if g.SaleEnd != nil && now.After(*g.SaleEnd) {
		return false
	}
	return true
}

// UserGift is an owned instance of a catalog gift. Exactly one owner at any
// time; a listed instance carries a sale price until sold or delisted.
type UserGift struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"index;not null" json:"user_id"`
	GiftID        uint      `gorm:"index;not null" json:"gift_id"`
	FromUserID    *uint     `gorm:"index" json:"from_user_id"`
	PurchasePrice int64     `gorm:"not null" json:"purchase_price"`
	IsForSale     bool      `gorm:"index;default:false" json:"is_for_sale"`
	SalePrice     *int64    `json:"sale_price"`
	ReceivedAt    time.Time `json:"received_at"`
}

// Gift transaction types.
const (
	GiftTxPurchase = "purchase"
	GiftTxGift     = "gift"
	GiftTxTrade    = "trade"
)

// GiftTransaction is an immutable audit record of an ownership change.
type GiftTransaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserGiftID  uint      `gorm:"index;not null" json:"user_gift_id"`
	FromUserID  uint      `gorm:"not null" json:"from_user_id"`
	ToUserID    uint      `gorm:"not null" json:"to_user_id"`
	Type        string    `gorm:"size:20;not null" json:"type"`
	StarsAmount int64     `gorm:"not null" json:"stars_amount"`
	CreatedAt   time.Time `json:"created_at"`
}
