package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// KYCStatus is the identity verification status of a partner
type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCVerified KYCStatus = "verified"
	KYCRejected KYCStatus = "rejected"
)

// Partner is a customer of the bank
type Partner struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	CIFNumber      string     `json:"cif_number"`
	KYCStatus      KYCStatus  `json:"kyc_status"`
	CreditScore    int        `json:"credit_score"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	TaxpayerID     string     `json:"taxpayer_id"`
	Occupation     string     `json:"occupation"`
	EmployerName   string     `json:"employer_name"`
	SourceOfIncome string     `json:"source_of_income"`
	CreatedAt      time.Time  `json:"created_at"`
}

// DisplayName is the name shown on cards and documents
func (p *Partner) DisplayName() string {
	return strings.TrimSpace(p.Name)
}

// Validate checks the partner against today's date
func (p *Partner) Validate(today time.Time) error {
	if p.DisplayName() == "" {
		return NewValidationError("name", "is required")
	}
	switch p.KYCStatus {
	case KYCPending, KYCVerified, KYCRejected:
	default:
		return NewValidationError("kyc_status", "must be pending, verified or rejected")
	}
	if p.DateOfBirth != nil && p.DateOfBirth.After(today) {
		return NewValidationError("date_of_birth", "cannot be in the future")
	}
	return nil
}
