package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID           uuid.UUID
	FullName     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Customer struct {
	ID        uuid.UUID
	FullName  string
	Phone     pgtype.Text
	Email     pgtype.Text
	Notes     pgtype.Text
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Service struct {
	ID              uuid.UUID
	Code            string
	Name            string
	Description     pgtype.Text
	Category        string
	PricingMode     string
	UnitPrice       pgtype.Numeric
	DefaultTaxRate  pgtype.Numeric
	TurnaroundHours int32
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type ServicePriceHistory struct {
	ID            uuid.UUID
	ServiceID     uuid.UUID
	PreviousPrice pgtype.Numeric
	NewPrice      pgtype.Numeric
	ChangedBy     pgtype.UUID
	Reason        pgtype.Text
	ChangedAt     time.Time
}

type ServicePromotion struct {
	ID            uuid.UUID
	ServiceID     uuid.UUID
	Name          string
	DiscountType  string
	DiscountValue pgtype.Numeric
	StartsAt      time.Time
	EndsAt        time.Time
	IsActive      bool
	CreatedBy     pgtype.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Order struct {
	ID            uuid.UUID
	Folio         string
	CustomerID    pgtype.UUID
	Status        string
	WashStatus    string
	DryStatus     string
	IroningStatus string
	ReceivedAt    time.Time
	PromisedAt    pgtype.Timestamptz
	DeliveredAt   pgtype.Timestamptz
	Notes         pgtype.Text
	Subtotal      pgtype.Numeric
	TaxAmount     pgtype.Numeric
	Total         pgtype.Numeric
	PaidAmount    pgtype.Numeric
	Balance       pgtype.Numeric
	CreatedBy     pgtype.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ServiceID   uuid.UUID
	Description string
	PricingMode string
	Quantity    pgtype.Numeric
	UnitPrice   pgtype.Numeric
	TaxRate     pgtype.Numeric
	Subtotal    pgtype.Numeric
	TaxAmount   pgtype.Numeric
	Total       pgtype.Numeric
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Payment struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	CashSessionID pgtype.UUID
	CapturedBy    pgtype.UUID
	Method        string
	Status        string
	Amount        pgtype.Numeric
	PaidAt        time.Time
	Reference     pgtype.Text
	Notes         pgtype.Text
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CashSession struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Shift         string
	OpenedAt      time.Time
	OpeningAmount pgtype.Numeric
	ClosedAt      pgtype.Timestamptz
	ClosingAmount pgtype.Numeric
	Notes         pgtype.Text
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CashMovement struct {
	ID            uuid.UUID
	CashSessionID uuid.UUID
	MovementType  string
	Amount        pgtype.Numeric
	Concept       string
	Notes         pgtype.Text
	OccurredAt    time.Time
	CreatedBy     pgtype.UUID
	CreatedAt     time.Time
}

type Supply struct {
	ID           uuid.UUID
	Code         string
	Name         string
	Unit         string
	MinStock     pgtype.Numeric
	CurrentStock pgtype.Numeric
	IsActive     bool
	Notes        pgtype.Text
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type InventoryMovement struct {
	ID           uuid.UUID
	SupplyID     uuid.UUID
	MovementType string
	Quantity     pgtype.Numeric
	UnitCost     pgtype.Numeric
	Concept      string
	Notes        pgtype.Text
	OccurredAt   time.Time
	CreatedBy    pgtype.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AuditLog struct {
	ID          uuid.UUID
	ActorID     pgtype.UUID
	Action      string
	TargetModel string
	TargetPk    string
	IpAddress   pgtype.Text
	Metadata    []byte
	CreatedAt   time.Time
}

type OperationalAlert struct {
	ID              uuid.UUID
	EventType       string
	Source          string
	Severity        string
	Message         string
	Metadata        []byte
	Fingerprint     string
	OccurrenceCount int32
	FirstSeenAt     time.Time
	LastSeenAt      time.Time
	ResolvedAt      pgtype.Timestamptz
}
