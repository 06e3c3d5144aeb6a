package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gchat-dev/gchat-api/internal/apperrors"
	"github.com/gchat-dev/gchat-api/internal/models"
)

// PurchaseResult reports the outcome of a catalog purchase.
type PurchaseResult struct {
	OwnedGift    models.UserGift
	BuyerBalance int64
}

// TradeResult reports the outcome of a marketplace trade.
type TradeResult struct {
	OwnedGift     models.UserGift
	SellerID      uint
	Price         int64
	BuyerBalance  int64
	SellerBalance int64
}

// TransferResult reports both balances after a star transfer.
type TransferResult struct {
	SenderBalance    int64
	RecipientBalance int64
}

// GiftRepository persists the gift catalog, owned instances and the star
// ledger. Economic operations run inside a single transaction with row locks
// so balances never go negative and a listed gift is sold at most once.
type GiftRepository interface {
	SeedCatalog(ctx context.Context, gifts []models.Gift) error
	ListCatalog(ctx context.Context) ([]models.Gift, error)
	FindGift(ctx context.Context, id uint) (models.Gift, error)

	ListOwned(ctx context.Context, userID uint) ([]models.UserGift, error)
	ListForSale(ctx context.Context) ([]models.UserGift, error)
	FindUserGift(ctx context.Context, id uint) (models.UserGift, error)

	Purchase(ctx context.Context, buyerID uint, gift models.Gift, recipientID uint) (PurchaseResult, error)
	SetSale(ctx context.Context, ownerID, userGiftID uint, price *int64) (models.UserGift, error)
	PurchaseListed(ctx context.Context, buyerID, userGiftID uint) (TradeResult, error)
	TransferStars(ctx context.Context, senderID, recipientID uint, amount int64) (TransferResult, error)
}

// marketplacePageSize caps how many listings a marketplace read returns.
const marketplacePageSize = 50

type giftRepository struct {
	db *gorm.DB
}

// NewGiftRepository constructs a gift repository backed by GORM.
func NewGiftRepository(db *gorm.DB) GiftRepository {
	return &giftRepository{db: db}
}

// SeedCatalog inserts catalog rows that do not exist yet, keyed by name.
func (r *giftRepository) SeedCatalog(ctx context.Context, gifts []models.Gift) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range gifts {
			var count int64
			if err := tx.Model(&models.Gift{}).Where("name = ?", gifts[i].Name).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			if err := tx.Create(&gifts[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *giftRepository) ListCatalog(ctx context.Context) ([]models.Gift, error) {
	var gifts []models.Gift
	if err := r.db.WithContext(ctx).Order("price ASC").Find(&gifts).Error; err != nil {
		return nil, err
	}
	return gifts, nil
}

func (r *giftRepository) FindGift(ctx context.Context, id uint) (models.Gift, error) {
	var gift models.Gift
	if err := r.db.WithContext(ctx).First(&gift, id).Error; err != nil {
		return models.Gift{}, err
	}
	return gift, nil
}

func (r *giftRepository) ListOwned(ctx context.Context, userID uint) ([]models.UserGift, error) {
	var owned []models.UserGift
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_for_sale = ?", userID, false).
		Order("received_at DESC").
		Find(&owned).Error
	if err != nil {
		return nil, err
	}
	return owned, nil
}

func (r *giftRepository) ListForSale(ctx context.Context) ([]models.UserGift, error) {
	var listed []models.UserGift
	err := r.db.WithContext(ctx).
		Where("is_for_sale = ?", true).
		Order("received_at DESC").
		Limit(marketplacePageSize).
		Find(&listed).Error
	if err != nil {
		return nil, err
	}
	return listed, nil
}

func (r *giftRepository) FindUserGift(ctx context.Context, id uint) (models.UserGift, error) {
	var owned models.UserGift
	if err := r.db.WithContext(ctx).First(&owned, id).Error; err != nil {
		return models.UserGift{}, err
	}
	return owned, nil
}

// Purchase debits the buyer and mints an owned instance for the recipient.
// The buyer row is locked so concurrent purchases cannot overdraw.
func (r *giftRepository) Purchase(ctx context.Context, buyerID uint, gift models.Gift, recipientID uint) (PurchaseResult, error) {
	var result PurchaseResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var buyer models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&buyer, buyerID).Error; err != nil {
			return err
		}
		if buyer.StarsBalance < gift.Price {
			return apperrors.New(apperrors.CodeInsufficientFunds, "not enough stars")
		}

		buyer.StarsBalance -= gift.Price
		if err := tx.Model(&models.User{}).Where("id = ?", buyerID).
			Update("stars_balance", buyer.StarsBalance).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		owned := models.UserGift{
			UserID:        recipientID,
			GiftID:        gift.ID,
			PurchasePrice: gift.Price,
			ReceivedAt:    now,
		}
		if recipientID != buyerID {
			from := buyerID
			owned.FromUserID = &from
		}
		if err := tx.Create(&owned).Error; err != nil {
			return err
		}

		txType := models.GiftTxPurchase
		if recipientID != buyerID {
			txType = models.GiftTxGift
		}
		record := models.GiftTransaction{
			UserGiftID:  owned.ID,
			FromUserID:  buyerID,
			ToUserID:    recipientID,
			Type:        txType,
			StarsAmount: gift.Price,
			CreatedAt:   now,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		result = PurchaseResult{OwnedGift: owned, BuyerBalance: buyer.StarsBalance}
		return nil
	})
	if err != nil {
		return PurchaseResult{}, err
	}

	return result, nil
}

// SetSale lists the instance at price, or delists it when price is nil. Only
// the current owner may change the listing.
func (r *giftRepository) SetSale(ctx context.Context, ownerID, userGiftID uint, price *int64) (models.UserGift, error) {
	var owned models.UserGift

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&owned, userGiftID).Error; err != nil {
			return err
		}
		if owned.UserID != ownerID {
			return apperrors.New(apperrors.CodeNotFound, "gift not found")
		}

		owned.IsForSale = price != nil
		owned.SalePrice = price
		return tx.Save(&owned).Error
	})
	if err != nil {
		return models.UserGift{}, err
	}

	return owned, nil
}

// PurchaseListed transfers a listed instance to the buyer. The instance row is
// locked first; a concurrent buyer finds the listing already cleared and gets
// a gone error. User rows are locked in ID order to avoid lock cycles.
func (r *giftRepository) PurchaseListed(ctx context.Context, buyerID, userGiftID uint) (TradeResult, error) {
	var result TradeResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned models.UserGift
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&owned, userGiftID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "gift not found")
			}
			return err
		}
		if !owned.IsForSale || owned.SalePrice == nil {
			return apperrors.New(apperrors.CodeGone, "gift is no longer for sale")
		}
		if owned.UserID == buyerID {
			return apperrors.New(apperrors.CodeNotFound, "gift not found")
		}

		sellerID := owned.UserID
		price := *owned.SalePrice

		var buyer, seller models.User
		first, second := buyerID, sellerID
		if second < first {
			first, second = second, first
		}
		for _, id := range []uint{first, second} {
			var user models.User
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error; err != nil {
				return err
			}
			if id == buyerID {
				buyer = user
			} else {
				seller = user
			}
		}

		if buyer.StarsBalance < price {
			return apperrors.New(apperrors.CodeInsufficientFunds, "not enough stars")
		}

		buyer.StarsBalance -= price
		seller.StarsBalance += price
		if err := tx.Model(&models.User{}).Where("id = ?", buyer.ID).
			Update("stars_balance", buyer.StarsBalance).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", seller.ID).
			Update("stars_balance", seller.StarsBalance).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		from := sellerID
		owned.UserID = buyerID
		owned.FromUserID = &from
		owned.IsForSale = false
		owned.SalePrice = nil
		owned.PurchasePrice = price
		owned.ReceivedAt = now
		if err := tx.Save(&owned).Error; err != nil {
			return err
		}

		record := models.GiftTransaction{
			UserGiftID:  owned.ID,
			FromUserID:  sellerID,
			ToUserID:    buyerID,
			Type:        models.GiftTxTrade,
			StarsAmount: price,
			CreatedAt:   now,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		result = TradeResult{
			OwnedGift:     owned,
			SellerID:      sellerID,
			Price:         price,
			BuyerBalance:  buyer.StarsBalance,
			SellerBalance: seller.StarsBalance,
		}
		return nil
	})
	if err != nil {
		return TradeResult{}, err
	}

	return result, nil
}

// TransferStars moves amount from sender to recipient atomically.
func (r *giftRepository) TransferStars(ctx context.Context, senderID, recipientID uint, amount int64) (TransferResult, error) {
	var result TransferResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sender, recipient models.User
		first, second := senderID, recipientID
		if second < first {
			first, second = second, first
		}
		for _, id := range []uint{first, second} {
			var user models.User
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error; err != nil {
				return err
			}
			if id == senderID {
				sender = user
			} else {
				recipient = user
			}
		}

		if sender.StarsBalance < amount {
			return apperrors.New(apperrors.CodeInsufficientFunds, "not enough stars")
		}

		sender.StarsBalance -= amount
		recipient.StarsBalance += amount
		if err := tx.Model(&models.User{}).Where("id = ?", sender.ID).
			Update("stars_balance", sender.StarsBalance).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", recipient.ID).
			Update("stars_balance", recipient.StarsBalance).Error; err != nil {
			return err
		}

		result = TransferResult{SenderBalance: sender.StarsBalance, RecipientBalance: recipient.StarsBalance}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	return result, nil
}
