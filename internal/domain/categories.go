package domain

// CategorySuggestions is the fixed per-type list offered by the UI when
// logging a transaction. Category remains free-form; these are hints only.
var CategorySuggestions = map[TransactionType][]string{
	TypeIncome:     {"Salary", "Freelance", "Business", "Interest", "Gift", "Other"},
	TypeExpense:    {"Food", "Rent", "Transport", "Shopping", "Utilities", "Health", "Entertainment", "Travel", "Other"},
	TypeInvestment: {"Stocks", "Mutual Funds", "Fixed Deposit", "Gold", "Crypto", "Other"},
}
