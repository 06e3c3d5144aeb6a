package dto

import (
	"time"

	"github.com/gchat-dev/gchat-api/internal/models"
)

// GiftView is a catalog entry with availability computed for "now".
type GiftView struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Price       int64      `json:"price"`
	Icon        string     `json:"icon"`
	Color       string     `json:"color"`
	Rarity      string     `json:"rarity"`
	IsLimited   bool       `json:"is_limited"`
	IsAvailable bool       `json:"is_available"`
	SaleEnd     *time.Time `json:"sale_end"`
}

// NewGiftView converts a catalog gift, computing availability at now.
func NewGiftView(gift models.Gift, now time.Time) GiftView {
	return GiftView{
		ID:          gift.ID,
		Name:        gift.Name,
		Price:       gift.Price,
		Icon:        gift.Icon,
		Color:       gift.Color,
		Rarity:      gift.Rarity,
		IsLimited:   gift.IsLimited,
		IsAvailable: gift.Available(now),
		SaleEnd:     gift.SaleEnd,
	}
}

// UserGiftView is an owned gift instance joined with its catalog entry and
// current owner.
type UserGiftView struct {
	ID            uint   `json:"id"`
	GiftID        uint   `json:"gift_id"`
	GiftName      string `json:"gift_name"`
	GiftIcon      string `json:"gift_icon"`
	GiftColor     string `json:"gift_color"`
	GiftRarity    string `json:"gift_rarity"`
	IsForSale     bool   `json:"is_for_sale"`
	SalePrice     *int64 `json:"sale_price"`
	OwnerUsername string `json:"owner_username"`
	OwnerAvatar   string `json:"owner_avatar"`
}

// BuyGiftRequest purchases a catalog gift, optionally gifting it to a friend.
type BuyGiftRequest struct {
	GiftID            uint   `json:"gift_id" validate:"required"`
	RecipientUsername string `json:"recipient_username" validate:"omitempty,max=80"`
}

// BuyGiftResponse returns the buyer's new balance and the created instance.
type BuyGiftResponse struct {
	Balance int64        `json:"balance"`
	Gift    UserGiftView `json:"gift"`
}

// SellGiftRequest toggles the sale listing of an owned gift. SalePrice is
// required when listing and ignored when delisting.
type SellGiftRequest struct {
	UserGiftID uint   `json:"user_gift_id" validate:"required"`
	SalePrice  *int64 `json:"sale_price"`
}

// SellGiftResponse reflects the listing state after the toggle.
type SellGiftResponse struct {
	IsForSale bool   `json:"is_for_sale"`
	SalePrice *int64 `json:"sale_price"`
}

// PurchaseListedRequest buys a marketplace listing.
type PurchaseListedRequest struct {
	UserGiftID uint `json:"user_gift_id" validate:"required"`
}

// SendStarsRequest transfers stars to a friend.
type SendStarsRequest struct {
	ToUsername string `json:"to_username" validate:"required,max=80"`
	Amount     int64  `json:"amount" validate:"required"`
}

// BalanceResponse returns the acting user's balance after a transfer.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
}
