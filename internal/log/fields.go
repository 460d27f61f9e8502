package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldTenantID    = "tenant_id"
	FieldUserID      = "user_id"
	FieldLoanID      = "loan_id"
	FieldDebtID      = "debt_id"
	FieldBudgetID    = "budget_id"
	FieldExpenseID   = "expense_id"
	FieldEventID     = "event_id"
	FieldRole        = "role"
	FieldAmount      = "amount"
	FieldCurrency    = "currency"
	FieldRemaining   = "remaining"
	FieldStatus      = "status"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldAttempt     = "attempt"
	FieldPercentUsed = "percentage_used"
)

// Components defines standard component names
const (
	ComponentEngine  = "engine"
	ComponentLoans   = "loans"
	ComponentDebts   = "debts"
	ComponentBudgets = "budgets"
	ComponentRates   = "rates"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
)
