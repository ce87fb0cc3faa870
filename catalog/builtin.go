package catalog

import "encoding/json"

// builtinVersion is the API version stamped on the built-in definitions.
const builtinVersion = "2025-06-01"

// Builtin returns the core banking event type definitions that ship with the
// engine. They are registered at startup (idempotent upsert) so a fresh
// deployment accepts the standard events without any operator action.
func Builtin() []Definition {
	return []Definition{
		{
			Name:        "customer.created",
			Description: "A new customer record was opened.",
			Group:       GroupCustomer,
			Version:     builtinVersion,
			Example:     json.RawMessage(`{"customer_id":"CUS-1042","segment":"retail"}`),
		},
		{
			Name:        "customer.updated",
			Description: "A customer's profile details changed.",
			Group:       GroupCustomer,
			Version:     builtinVersion,
		},
		{
			Name:        "customer.kyc_approved",
			Description: "Know-your-customer verification completed successfully.",
			Group:       GroupCustomer,
			Version:     builtinVersion,
		},
		{
			Name:        "account.created",
			Description: "A new account was provisioned for a customer.",
			Group:       GroupAccount,
			Version:     builtinVersion,
			Schema: json.RawMessage(`{
				"type": "object",
				"required": ["account_id", "customer_id"],
				"properties": {
					"account_id":  {"type": "string"},
					"customer_id": {"type": "string"},
					"currency":    {"type": "string"}
				}
			}`),
			Example: json.RawMessage(`{"account_id":"ACC-55001","customer_id":"CUS-1042","currency":"USD"}`),
		},
		{
			Name:        "account.closed",
			Description: "An account was closed and can no longer transact.",
			Group:       GroupAccount,
			Version:     builtinVersion,
		},
		{
			Name:        "account.balance_low",
			Description: "An account balance dropped below its configured threshold.",
			Group:       GroupAccount,
			Version:     builtinVersion,
			Example:     json.RawMessage(`{"account_id":"ACC-55001","balance":12.50,"threshold":100}`),
		},
		{
			Name:        "transaction.created",
			Description: "A ledger transaction was posted.",
			Group:       GroupTransaction,
			Version:     builtinVersion,
		},
		{
			Name:        "transaction.flagged",
			Description: "A transaction was flagged by risk screening.",
			Group:       GroupTransaction,
			Version:     builtinVersion,
		},
		{
			Name:        "payment.initiated",
			Description: "An outbound payment entered processing.",
			Group:       GroupPayment,
			Version:     builtinVersion,
		},
		{
			Name:        "payment.completed",
			Description: "A payment settled successfully.",
			Group:       GroupPayment,
			Version:     builtinVersion,
			Schema: json.RawMessage(`{
				"type": "object",
				"required": ["payment_id", "amount"],
				"properties": {
					"payment_id": {"type": "string"},
					"amount":     {"type": "number"},
					"currency":   {"type": "string"}
				}
			}`),
			Example: json.RawMessage(`{"payment_id":"PAY-88123","amount":250.00,"currency":"USD"}`),
		},
		{
			Name:        "payment.failed",
			Description: "A payment was rejected or could not settle.",
			Group:       GroupPayment,
			Version:     builtinVersion,
		},
		{
			Name:        "loan.application_submitted",
			Description: "A loan application was received.",
			Group:       GroupLoan,
			Version:     builtinVersion,
		},
		{
			Name:        "loan.approved",
			Description: "A loan application was approved and funded.",
			Group:       GroupLoan,
			Version:     builtinVersion,
		},
		{
			Name:        "loan.payment_due",
			Description: "A loan installment is approaching its due date.",
			Group:       GroupLoan,
			Version:     builtinVersion,
		},
		{
			Name:        "loan.defaulted",
			Description: "A loan moved into default status.",
			Group:       GroupLoan,
			Version:     builtinVersion,
		},
		{
			Name:        "system.maintenance_scheduled",
			Description: "A maintenance window was announced.",
			Group:       GroupSystem,
			Version:     builtinVersion,
		},
		{
			Name:        "system.webhook_validation",
			Description: "Synthetic probe sent while validating a subscription endpoint.",
			Group:       GroupSystem,
			Version:     builtinVersion,
		},
	}
}
