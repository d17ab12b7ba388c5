package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusReceived  = "RECEIVED"
	OrderStatusInProcess = "IN_PROCESS"
	OrderStatusReady     = "READY"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

const (
	AreaStatusPending       = "PENDING"
	AreaStatusInProgress    = "IN_PROGRESS"
	AreaStatusDone          = "DONE"
	AreaStatusNotApplicable = "NA"
)

const (
	PaymentStatusApplied = "APPLIED"
	PaymentStatusVoid    = "VOID"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
)

const (
	ServiceCategoryLaundry = "LAUNDRY"
	ServiceCategoryWash    = "WASH"
	ServiceCategoryDry     = "DRY"
	ServiceCategoryIroning = "IRONING"
	ServiceCategorySpecial = "SPECIAL"
)

const (
	PricingModeByWeight = "BY_WEIGHT"
	PricingModeByPiece  = "BY_PIECE"
	PricingModeFixed    = "FIXED"
)

const (
	InventoryMovementEntry         = "ENTRY"
	InventoryMovementConsumption   = "CONSUMPTION"
	InventoryMovementLoss          = "LOSS"
	InventoryMovementAdjustmentIn  = "ADJUSTMENT_IN"
	InventoryMovementAdjustmentOut = "ADJUSTMENT_OUT"
)

const (
	CashMovementIncome     = "INCOME"
	CashMovementExpense    = "EXPENSE"
	CashMovementAdjustment = "ADJUSTMENT"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash     = "CASH"
	PaymentMethodCard     = "CARD"
	PaymentMethodTransfer = "TRANSFER"
	PaymentMethodOther    = "OTHER"
)

const (
	DiscountTypePercent = "PERCENT"
	DiscountTypeFixed   = "FIXED_AMOUNT"
)

const (
	AlertSeverityInfo     = "INFO"
	AlertSeverityWarning  = "WARNING"
	AlertSeverityCritical = "CRITICAL"
)

const (
	SupplyUnitLiter    = "LITER"
	SupplyUnitKilogram = "KILOGRAM"
	SupplyUnitPiece    = "PIECE"
	SupplyUnitBox      = "BOX"
)
