package models

import "github.com/shopspring/decimal"

func init() {
	// Amounts are emitted as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// All returns every model in dependency order for migrations.
func All() []any {
	return []any{
		&Customer{},
		&Employee{},
		&Vehicle{},
		&Service{},
		&Order{},
		&OrderService{},
		&Payment{},
	}
}
