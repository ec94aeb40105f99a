package repository

import (
	"context"
	"database/sql"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/google/uuid"
)

const partnerColumns = `id, name, email, phone, cif_number, kyc_status, credit_score, date_of_birth,
	taxpayer_id, occupation, employer_name, source_of_income, created_at`

// CreatePartner inserts a new partner
func (r *Repository) CreatePartner(ctx context.Context, p *models.Partner) error {
	_, err := r.exec(ctx, `
		INSERT INTO partners (`+partnerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Email, p.Phone, p.CIFNumber, string(p.KYCStatus), p.CreditScore, timeArg(p.DateOfBirth),
		p.TaxpayerID, p.Occupation, p.EmployerName, p.SourceOfIncome, p.CreatedAt.UTC())
	if err != nil {
		return wrap("create partner", err)
	}
	return nil
}

// GetPartner retrieves a partner by id
func (r *Repository) GetPartner(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	row := r.queryRow(ctx, `SELECT `+partnerColumns+` FROM partners WHERE id = ?`, id)
	p, err := scanPartner(row)
	if err != nil {
		return nil, wrap("partner "+id.String(), err)
	}
	return p, nil
}

// DeletePartner removes a partner. Referenced partners fail with ErrReferentialRestriction.
func (r *Repository) DeletePartner(ctx context.Context, id uuid.UUID) error {
	res, err := r.exec(ctx, `DELETE FROM partners WHERE id = ?`, id)
	if err != nil {
		return wrap("delete partner", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return wrap("partner "+id.String(), sql.ErrNoRows)
	}
	return nil
}

func scanPartner(s rowScanner) (*models.Partner, error) {
	var (
		p   models.Partner
		dob sql.NullTime
	)
	err := s.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.CIFNumber, &p.KYCStatus, &p.CreditScore, &dob,
		&p.TaxpayerID, &p.Occupation, &p.EmployerName, &p.SourceOfIncome, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.DateOfBirth = nullTime(dob)
	return &p, nil
}
