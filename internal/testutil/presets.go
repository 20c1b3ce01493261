package testutil

import "time"

// HouseholdDate is the date of the household grocery transaction.
var HouseholdDate = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

// WithHouseholdData adds the standard test dataset.
//
// Structure:
//
//	Assets 1000
//	  └── Cash 1010
//	Expenses 5000
//
//	Groceries: Cash -1250, Expenses +1250
func (b *Builder) WithHouseholdData() *Builder {
	return b.
		WithName("Household").
		WithAccount("Assets", "1000", Child("Cash", "1010")).
		WithAccount("Expenses", "5000").
		WithTransaction(HouseholdDate, "Groceries",
			Entry("cash", -1250, "Cash"),
			Entry("food", 1250, "Expenses"))
}
