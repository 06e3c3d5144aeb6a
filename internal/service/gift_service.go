package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/gchat-dev/gchat-api/internal/apperrors"
	"github.com/gchat-dev/gchat-api/internal/dto"
	"github.com/gchat-dev/gchat-api/internal/models"
	"github.com/gchat-dev/gchat-api/internal/observability"
	"github.com/gchat-dev/gchat-api/internal/repository"
)

// GiftService covers the star economy: the catalog, buying and gifting,
// marketplace listings and direct star transfers.
type GiftService interface {
	Catalog(ctx context.Context) ([]dto.GiftView, error)
	Owned(ctx context.Context, userID uint) ([]dto.UserGiftView, error)
	Marketplace(ctx context.Context) ([]dto.UserGiftView, error)
	Buy(ctx context.Context, buyer models.User, req dto.BuyGiftRequest) (dto.BuyGiftResponse, error)
	ToggleSale(ctx context.Context, ownerID uint, req dto.SellGiftRequest) (dto.SellGiftResponse, error)
	BuyListed(ctx context.Context, buyer models.User, req dto.PurchaseListedRequest) (dto.BuyGiftResponse, error)
	SendStars(ctx context.Context, sender models.User, req dto.SendStarsRequest) (dto.BalanceResponse, error)
	Seed(ctx context.Context) error
}

type giftService struct {
	gifts         repository.GiftRepository
	users         repository.UserRepository
	notifications NotificationService
	sink          EventSink
	validator     *validator.Validate
	tracer        trace.Tracer
	logger        zerolog.Logger
	now           func() time.Time
}

// NewGiftService constructs the gift service.
func NewGiftService(gifts repository.GiftRepository, users repository.UserRepository, notifications NotificationService, sink EventSink, validate *validator.Validate, logger zerolog.Logger) GiftService {
	return &giftService{
		gifts:         gifts,
		users:         users,
		notifications: notifications,
		sink:          sink,
		validator:     validate,
		tracer:        otel.Tracer("github.com/gchat-dev/gchat-api/internal/service/gift"),
		logger:        logger.With().Str("component", "gift_service").Logger(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Seed inserts the default catalog if its entries are missing. The pumpkin is
// limited to its yearly sale window.
func (s *giftService) Seed(ctx context.Context) error {
	year := s.now().Year()
	pumpkinStart := time.Date(year, time.October, 31, 0, 0, 0, 0, time.UTC)
	pumpkinEnd := time.Date(year, time.November, 3, 23, 59, 59, 0, time.UTC)

	catalog := []models.Gift{
		{Name: "Flower", Price: 50, Icon: "flower", Color: "#e91e63", Rarity: "common"},
		{Name: "Heart", Price: 100, Icon: "heart", Color: "#f44336", Rarity: "uncommon"},
		{Name: "Crown", Price: 200, Icon: "crown", Color: "#ffc107", Rarity: "rare"},
		{Name: "Halloween Pumpkin", Price: 450, Icon: "pumpkin", Color: "#ff9800", Rarity: "legendary", IsLimited: true, SaleStart: &pumpkinStart, SaleEnd: &pumpkinEnd},
		{Name: "Star", Price: 500, Icon: "star", Color: "#9c27b0", Rarity: "legendary"},
	}

	return s.gifts.SeedCatalog(ctx, catalog)
}

func (s *giftService) Catalog(ctx context.Context) ([]dto.GiftView, error) {
	gifts, err := s.gifts.ListCatalog(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]dto.GiftView, 0, len(gifts))
	for _, gift := range gifts {
		views = append(views, dto.NewGiftView(gift, now))
	}
	return views, nil
}

func (s *giftService) Owned(ctx context.Context, userID uint) ([]dto.UserGiftView, error) {
	owned, err := s.gifts.ListOwned(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.toViews(ctx, owned)
}

func (s *giftService) Marketplace(ctx context.Context) ([]dto.UserGiftView, error) {
	listed, err := s.gifts.ListForSale(ctx)
	if err != nil {
		return nil, err
	}
	return s.toViews(ctx, listed)
}

// Buy purchases a catalog gift for the buyer, or for a friend when a
// recipient is named. The debit, mint and audit record commit atomically.
func (s *giftService) Buy(ctx context.Context, buyer models.User, req dto.BuyGiftRequest) (dto.BuyGiftResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.BuyGiftResponse{}, apperrors.New(apperrors.CodeInvalidArgument, "invalid purchase request")
	}

	gift, err := s.gifts.FindGift(ctx, req.GiftID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.BuyGiftResponse{}, apperrors.New(apperrors.CodeNotFound, "gift not found")
	}
	if err != nil {
		return dto.BuyGiftResponse{}, err
	}

	if !gift.Available(s.now()) {
		return dto.BuyGiftResponse{}, apperrors.New(apperrors.CodeUnavailable, "this gift is not available right now")
	}

	recipient := buyer
	if name := strings.TrimSpace(req.RecipientUsername); name != "" {
		if strings.EqualFold(name, buyer.Username) {
			return dto.BuyGiftResponse{}, apperrors.New(apperrors.CodeNotFound, "user not found")
		}

		other, err := s.users.FindByUsername(ctx, name)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BuyGiftResponse{}, apperrors.New(apperrors.CodeNotFound, "user not found")
		}
		if err != nil {
			return dto.BuyGiftResponse{}, err
		}

		friends, err := s.users.AreFriends(ctx, buyer.ID, other.ID)
		if err != nil {
			return dto.BuyGiftResponse{}, err
		}
		if !friends {
			return dto.BuyGiftResponse{}, apperrors.New(apperrors.CodeForbidden, "you can only send gifts to friends")
		}
		recipient = other
	}

	spanCtx, span := s.tracer.Start(ctx, "gift.buy", trace.WithAttributes(
		attribute.Int64("gift.id", int64(gift.ID)),
		attribute.Int64("gift.price", gift.Price),
	))
	defer span.End()

	result, err := s.gifts.Purchase(spanCtx, buyer.ID, gift, recipient.ID)
	if err != nil {
		span.RecordError(err)
		return dto.BuyGiftResponse{}, err
	}

	observability.StarsSpent().Add(float64(gift.Price))
	txType := models.GiftTxPurchase
	if recipient.ID != buyer.ID {
		txType = models.GiftTxGift
	}
	observability.GiftTrades().WithLabelValues(txType).Inc()

	s.sink.SendToUser(buyer.Username, dto.Event{
		Type: dto.EventStarsBalanceUpdate,
		Data: dto.StarsBalanceUpdatePayload{Username: buyer.Username, Stars: result.BuyerBalance},
	})

	if recipient.ID != buyer.ID {
		if err := s.notifications.Notify(spanCtx, recipient.ID, recipient.Username, models.NotifGiftReceived,
			"Gift received", fmt.Sprintf("%s sent you a %s", buyer.Username, gift.Name),
			map[string]interface{}{"from": buyer.Username, "gift": gift.Name}); err != nil {
			s.logger.Warn().Err(err).Msg("failed to store gift notification")
		}
	}

	return dto.BuyGiftResponse{
		Balance: result.BuyerBalance,
		Gift:    s.toView(ctx, result.OwnedGift),
	}, nil
}

// ToggleSale lists an owned gift at the given price, or delists it when no
// price is provided.
func (s *giftService) ToggleSale(ctx context.Context, ownerID uint, req dto.SellGiftRequest) (dto.SellGiftResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SellGiftResponse{}, apperrors.New(apperrors.CodeInvalidArgument, "invalid listing request")
	}
	if req.SalePrice != nil && *req.SalePrice <= 0 {
		return dto.SellGiftResponse{}, apperrors.New(apperrors.CodeInvalidArgument, "sale price must be positive")
	}

	owned, err := s.gifts.SetSale(ctx, ownerID, req.UserGiftID, req.SalePrice)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SellGiftResponse{}, apperrors.New(apperrors.CodeNotFound, "gift not found")
	}
	if err != nil {
		return dto.SellGiftResponse{}, err
	}

	return dto.SellGiftResponse{IsForSale: owned.IsForSale, SalePrice: owned.SalePrice}, nil
}

// BuyListed buys a marketplace listing. Both parties see their new balances;
// the seller also gets a sale notification.
func (s *giftService) BuyListed(ctx context.Context, buyer models.User, req dto.PurchaseListedRequest) (dto.BuyGiftResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.BuyGiftResponse{}, apperrors.New(apperrors.CodeInvalidArgument, "invalid purchase request")
	}

	spanCtx, span := s.tracer.Start(ctx, "gift.buy_listed", trace.WithAttributes(
		attribute.Int64("user_gift.id", int64(req.UserGiftID)),
	))
	defer span.End()

	result, err := s.gifts.PurchaseListed(spanCtx, buyer.ID, req.UserGiftID)
	if err != nil {
		span.RecordError(err)
		return dto.BuyGiftResponse{}, err
	}

	observability.StarsSpent().Add(float64(result.Price))
	observability.GiftTrades().WithLabelValues(models.GiftTxTrade).Inc()

	seller, err := s.users.FindByID(ctx, result.SellerID)
	if err != nil {
		return dto.BuyGiftResponse{}, err
	}

	gift, err := s.gifts.FindGift(ctx, result.OwnedGift.GiftID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("gift_id", result.OwnedGift.GiftID).Msg("failed to load gift for sale notification")
		gift.Name = "gift"
	}

	s.sink.SendToUser(buyer.Username, dto.Event{
		Type: dto.EventStarsBalanceUpdate,
		Data: dto.StarsBalanceUpdatePayload{Username: buyer.Username, Stars: result.BuyerBalance},
	})
	s.sink.SendToUser(seller.Username, dto.Event{
		Type: dto.EventStarsBalanceUpdate,
		Data: dto.StarsBalanceUpdatePayload{Username: seller.Username, Stars: result.SellerBalance},
	})

	if err := s.notifications.Notify(spanCtx, seller.ID, seller.Username, models.NotifGiftSold,
		"Gift sold", fmt.Sprintf("%s bought your %s for %d stars", buyer.Username, gift.Name, result.Price),
		map[string]interface{}{"buyer": buyer.Username, "gift": gift.Name, "price": result.Price}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store gift sold notification")
	}

	return dto.BuyGiftResponse{
		Balance: result.BuyerBalance,
		Gift:    s.toView(ctx, result.OwnedGift),
	}, nil
}

// SendStars transfers stars to a friend. Both parties' sessions see the new
// balances immediately.
func (s *giftService) SendStars(ctx context.Context, sender models.User, req dto.SendStarsRequest) (dto.BalanceResponse, error) {
	if err := s.validator.Struct(req); err != nil || req.Amount <= 0 {
		return dto.BalanceResponse{}, apperrors.New(apperrors.CodeInvalidArgument, "amount must be positive")
	}

	recipient, err := s.users.FindByUsername(ctx, strings.TrimSpace(req.ToUsername))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.BalanceResponse{}, apperrors.New(apperrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return dto.BalanceResponse{}, err
	}
	if recipient.ID == sender.ID {
		return dto.BalanceResponse{}, apperrors.New(apperrors.CodeInvalidArgument, "you cannot send stars to yourself")
	}

	friends, err := s.users.AreFriends(ctx, sender.ID, recipient.ID)
	if err != nil {
		return dto.BalanceResponse{}, err
	}
	if !friends {
		return dto.BalanceResponse{}, apperrors.New(apperrors.CodeForbidden, "you can only send stars to friends")
	}

	spanCtx, span := s.tracer.Start(ctx, "stars.transfer", trace.WithAttributes(
		attribute.Int64("amount", req.Amount),
	))
	defer span.End()

	result, err := s.gifts.TransferStars(spanCtx, sender.ID, recipient.ID, req.Amount)
	if err != nil {
		span.RecordError(err)
		return dto.BalanceResponse{}, err
	}

	observability.StarsSpent().Add(float64(req.Amount))

	s.sink.SendToUser(sender.Username, dto.Event{
		Type: dto.EventStarsBalanceUpdate,
		Data: dto.StarsBalanceUpdatePayload{Username: sender.Username, Stars: result.SenderBalance},
	})
	s.sink.SendToUser(recipient.Username, dto.Event{
		Type: dto.EventStarsBalanceUpdate,
		Data: dto.StarsBalanceUpdatePayload{Username: recipient.Username, Stars: result.RecipientBalance},
	})

	if err := s.notifications.Notify(spanCtx, recipient.ID, recipient.Username, models.NotifStarsReceived,
		"Stars received", fmt.Sprintf("%s sent you %d stars", sender.Username, req.Amount),
		map[string]interface{}{"from": sender.Username, "amount": req.Amount}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store stars notification")
	}

	return dto.BalanceResponse{Balance: result.SenderBalance}, nil
}

func (s *giftService) toViews(ctx context.Context, owned []models.UserGift) ([]dto.UserGiftView, error) {
	views := make([]dto.UserGiftView, 0, len(owned))
	for _, instance := range owned {
		views = append(views, s.toView(ctx, instance))
	}
	return views, nil
}

func (s *giftService) toView(ctx context.Context, instance models.UserGift) dto.UserGiftView {
	view := dto.UserGiftView{
		ID:        instance.ID,
		GiftID:    instance.GiftID,
		IsForSale: instance.IsForSale,
		SalePrice: instance.SalePrice,
	}

	if gift, err := s.gifts.FindGift(ctx, instance.GiftID); err == nil {
		view.GiftName = gift.Name
		view.GiftIcon = gift.Icon
		view.GiftColor = gift.Color
		view.GiftRarity = gift.Rarity
	}
	if owner, err := s.users.FindByID(ctx, instance.UserID); err == nil {
		view.OwnerUsername = owner.Username
		view.OwnerAvatar = owner.Avatar
	}

	return view
}
