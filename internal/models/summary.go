package models

// PartnerSummary aggregates a partner's holdings, one total per currency
type PartnerSummary struct {
	TotalAccountBalance []Money `json:"total_account_balance"`
	TotalLoanAmount     []Money `json:"total_loan_amount"`
	ActiveLoans         int     `json:"active_loans"`
	OpenTickets         int     `json:"open_tickets"`
}
