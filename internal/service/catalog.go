package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavanderia-pos/api/internal/audit"
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/lavanderia-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Errors returned by the catalog service.
var (
	ErrInvalidCategory    = errors.New("invalid service category")
	ErrInvalidPricingMode = errors.New("invalid pricing mode")
	ErrInvalidPromoWindow = errors.New("ends_at must be after starts_at")
	ErrInvalidDiscount    = errors.New("invalid discount")
)

// CatalogStore defines the DB methods needed by the catalog service.
type CatalogStore interface {
	CreateService(ctx context.Context, arg database.CreateServiceParams) (database.Service, error)
	GetServiceForUpdate(ctx context.Context, id uuid.UUID) (database.Service, error)
	UpdateService(ctx context.Context, arg database.UpdateServiceParams) (database.Service, error)
	CreateServicePriceHistory(ctx context.Context, arg database.CreateServicePriceHistoryParams) (database.ServicePriceHistory, error)
	CreateServicePromotion(ctx context.Context, arg database.CreateServicePromotionParams) (database.ServicePromotion, error)
	GetService(ctx context.Context, id uuid.UUID) (database.Service, error)
	CreateAuditLog(ctx context.Context, arg database.CreateAuditLogParams) (database.AuditLog, error)
}

// NewCatalogStore creates a CatalogStore from a DBTX (pool or tx).
type NewCatalogStore func(db database.DBTX) CatalogStore

// CatalogService manages the service catalog: prices, tax rates and
// promotions. Price changes are journaled to service_price_history so
// the effective price of any past order can be explained.
type CatalogService struct {
	pool     TxBeginner
	newStore NewCatalogStore
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(pool TxBeginner, newStore NewCatalogStore) *CatalogService {
	return &CatalogService{pool: pool, newStore: newStore}
}

// CreateServiceRequest is the validated input for a catalog entry.
type CreateServiceRequest struct {
	Code            string
	Name            string
	Description     string
	Category        string
	PricingMode     string
	UnitPrice       string
	DefaultTaxRate  string
	TurnaroundHours int32
}

// CreateService adds a new service to the catalog.
func (s *CatalogService) CreateService(ctx context.Context, req CreateServiceRequest) (database.Service, error) {
	if !isValidCategory(req.Category) {
		return database.Service{}, ErrInvalidCategory
	}
	if !isValidPricingMode(req.PricingMode) {
		return database.Service{}, ErrInvalidPricingMode
	}
	unitPrice, err := decimal.NewFromString(req.UnitPrice)
	if err != nil || unitPrice.IsNegative() {
		return database.Service{}, ErrInvalidUnitPrice
	}
	taxRate, err := decimal.NewFromString(req.DefaultTaxRate)
	if err != nil || taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(100)) {
		return database.Service{}, ErrInvalidTaxRate
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Service{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	svc, err := store.CreateService(ctx, database.CreateServiceParams{
		Code:            req.Code,
		Name:            req.Name,
		Description:     textOrNull(req.Description),
		Category:        req.Category,
		PricingMode:     req.PricingMode,
		UnitPrice:       decimalToNumeric(unitPrice),
		DefaultTaxRate:  decimalToNumeric(taxRate),
		TurnaroundHours: req.TurnaroundHours,
	})
	if err != nil {
		return database.Service{}, fmt.Errorf("create service: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Service{}, fmt.Errorf("commit tx: %w", err)
	}
	return svc, nil
}

// UpdateServiceRequest carries the editable fields of a service.
// Empty strings leave the current value untouched.
type UpdateServiceRequest struct {
	Name            string
	Description     string
	Category        string
	PricingMode     string
	UnitPrice       string
	DefaultTaxRate  string
	TurnaroundHours *int32
	IsActive        *bool
	PriceReason     string
}

// UpdateService edits a catalog entry. A unit price change writes a
// price history row and an audit entry in the same transaction.
func (s *CatalogService) UpdateService(ctx context.Context, serviceID uuid.UUID, req UpdateServiceRequest, actor audit.Actor) (database.Service, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Service{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetServiceForUpdate(ctx, serviceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Service{}, ErrServiceNotFound
		}
		return database.Service{}, fmt.Errorf("get service: %w", err)
	}

	name := current.Name
	if req.Name != "" {
		name = req.Name
	}
	description := current.Description
	if req.Description != "" {
		description = pgtype.Text{String: req.Description, Valid: true}
	}
	category := current.Category
	if req.Category != "" {
		if !isValidCategory(req.Category) {
			return database.Service{}, ErrInvalidCategory
		}
		category = req.Category
	}
	pricingMode := current.PricingMode
	if req.PricingMode != "" {
		if !isValidPricingMode(req.PricingMode) {
			return database.Service{}, ErrInvalidPricingMode
		}
		pricingMode = req.PricingMode
	}
	turnaround := current.TurnaroundHours
	if req.TurnaroundHours != nil {
		turnaround = *req.TurnaroundHours
	}
	isActive := current.IsActive
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	previousPrice := numericToDecimal(current.UnitPrice)
	unitPrice := previousPrice
	if req.UnitPrice != "" {
		unitPrice, err = decimal.NewFromString(req.UnitPrice)
		if err != nil || unitPrice.IsNegative() {
			return database.Service{}, ErrInvalidUnitPrice
		}
	}

	taxRate := numericToDecimal(current.DefaultTaxRate)
	if req.DefaultTaxRate != "" {
		taxRate, err = decimal.NewFromString(req.DefaultTaxRate)
		if err != nil || taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(100)) {
			return database.Service{}, ErrInvalidTaxRate
		}
	}

	updated, err := store.UpdateService(ctx, database.UpdateServiceParams{
		ID:              current.ID,
		Name:            name,
		Description:     description,
		Category:        category,
		PricingMode:     pricingMode,
		UnitPrice:       decimalToNumeric(unitPrice),
		DefaultTaxRate:  decimalToNumeric(taxRate),
		TurnaroundHours: turnaround,
		IsActive:        isActive,
	})
	if err != nil {
		return database.Service{}, fmt.Errorf("update service: %w", err)
	}

	if !unitPrice.Equal(previousPrice) {
		changedBy := pgtype.UUID{}
		if actor.UserID != nil {
			changedBy = pgtype.UUID{Bytes: *actor.UserID, Valid: true}
		}
		if _, err := store.CreateServicePriceHistory(ctx, database.CreateServicePriceHistoryParams{
			ServiceID:     current.ID,
			PreviousPrice: decimalToNumeric(previousPrice),
			NewPrice:      decimalToNumeric(unitPrice),
			ChangedBy:     changedBy,
			Reason:        textOrNull(req.PriceReason),
		}); err != nil {
			return database.Service{}, fmt.Errorf("create price history: %w", err)
		}

		recorder := audit.NewRecorder(store)
		if err := recorder.Log(ctx, actor, audit.Event{
			Action:      "service.price_changed",
			TargetModel: "catalog.Service",
			TargetPK:    current.ID.String(),
			Changes: map[string]audit.Change{
				"unit_price": {Before: previousPrice, After: unitPrice},
			},
			Metadata: map[string]any{"reason": req.PriceReason},
		}); err != nil {
			return database.Service{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Service{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

// CreatePromotionRequest is the validated input for a promotion.
type CreatePromotionRequest struct {
	ServiceID     uuid.UUID
	Name          string
	DiscountType  string
	DiscountValue string
	StartsAt      time.Time
	EndsAt        time.Time
	CreatedBy     uuid.UUID
}

// CreatePromotion attaches a time-boxed discount to a service.
// Percent discounts are capped at 100.
func (s *CatalogService) CreatePromotion(ctx context.Context, req CreatePromotionRequest) (database.ServicePromotion, error) {
	if !req.EndsAt.After(req.StartsAt) {
		return database.ServicePromotion{}, ErrInvalidPromoWindow
	}
	value, err := decimal.NewFromString(req.DiscountValue)
	if err != nil || value.LessThanOrEqual(decimal.Zero) {
		return database.ServicePromotion{}, ErrInvalidDiscount
	}
	switch req.DiscountType {
	case enum.DiscountTypePercent:
		if value.GreaterThan(decimal.NewFromInt(100)) {
			return database.ServicePromotion{}, ErrInvalidDiscount
		}
	case enum.DiscountTypeFixed:
	default:
		return database.ServicePromotion{}, ErrInvalidDiscount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.ServicePromotion{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetService(ctx, req.ServiceID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ServicePromotion{}, ErrServiceNotFound
		}
		return database.ServicePromotion{}, fmt.Errorf("get service: %w", err)
	}

	promo, err := store.CreateServicePromotion(ctx, database.CreateServicePromotionParams{
		ServiceID:     req.ServiceID,
		Name:          req.Name,
		DiscountType:  req.DiscountType,
		DiscountValue: decimalToNumeric(value),
		StartsAt:      req.StartsAt,
		EndsAt:        req.EndsAt,
		CreatedBy:     pgtype.UUID{Bytes: req.CreatedBy, Valid: true},
	})
	if err != nil {
		return database.ServicePromotion{}, fmt.Errorf("create promotion: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.ServicePromotion{}, fmt.Errorf("commit tx: %w", err)
	}
	return promo, nil
}

func isValidCategory(c string) bool {
	switch c {
	case enum.ServiceCategoryLaundry, enum.ServiceCategoryWash, enum.ServiceCategoryDry,
		enum.ServiceCategoryIroning, enum.ServiceCategorySpecial:
		return true
	}
	return false
}

func isValidPricingMode(m string) bool {
	switch m {
	case enum.PricingModeByWeight, enum.PricingModeByPiece, enum.PricingModeFixed:
		return true
	}
	return false
}
