package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/Dan9191/retail-banking/internal/repository"
	"github.com/google/uuid"
)

// CreatePartnerRequest registers a customer
type CreatePartnerRequest struct {
	Name           string           `json:"name"`
	Email          string           `json:"email"`
	Phone          string           `json:"phone"`
	KYCStatus      models.KYCStatus `json:"kyc_status"`
	CreditScore    int              `json:"credit_score"`
	DateOfBirth    *time.Time       `json:"date_of_birth"`
	TaxpayerID     string           `json:"taxpayer_id"`
	Occupation     string           `json:"occupation"`
	EmployerName   string           `json:"employer_name"`
	SourceOfIncome string           `json:"source_of_income"`
}

// CreatePartner registers a partner with a CIF number from the partner.cif sequence
func (s *Service) CreatePartner(ctx context.Context, sess models.Session, req CreatePartnerRequest) (*models.Partner, error) {
	kyc := req.KYCStatus
	if kyc == "" {
		kyc = models.KYCPending
	}
	p := &models.Partner{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		KYCStatus:      kyc,
		CreditScore:    req.CreditScore,
		TaxpayerID:     req.TaxpayerID,
		Occupation:     req.Occupation,
		EmployerName:   req.EmployerName,
		SourceOfIncome: req.SourceOfIncome,
		CreatedAt:      s.now(),
	}
	if req.DateOfBirth != nil {
		dob := req.DateOfBirth.UTC()
		p.DateOfBirth = &dob
	}
	if err := p.Validate(s.today()); err != nil {
		return nil, err
	}

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		cif, err := s.store.NextSequence(ctx, repository.SequencePartner)
		if err != nil {
			return err
		}
		p.CIFNumber = cif
		return s.store.CreatePartner(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("partner_id", p.ID).Infof("Partner %s registered: %s", p.CIFNumber, p.DisplayName())
	return p, nil
}

// GetPartner returns a partner
func (s *Service) GetPartner(ctx context.Context, sess models.Session, id uuid.UUID) (*models.Partner, error) {
	return s.store.GetPartner(ctx, id)
}

// DeletePartner removes a partner nothing else references
func (s *Service) DeletePartner(ctx context.Context, sess models.Session, id uuid.UUID) error {
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.store.GetPartner(ctx, id); err != nil {
			return err
		}

		refs := []struct {
			name  string
			count func(context.Context, ...repository.Filter) (int, error)
			by    string
		}{
			{"accounts", s.store.CountAccounts, "owner_id"},
			{"cards", s.store.CountCards, "holder_id"},
			{"loan applications", s.store.CountApplications, "applicant_id"},
			{"loans", s.store.CountLoans, "owner_id"},
			{"tickets", s.store.CountTickets, "partner_id"},
		}
		for _, ref := range refs {
			n, err := ref.count(ctx, repository.Eq(ref.by, id))
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("partner %s has %d %s: %w", id, n, ref.name, models.ErrReferentialRestriction)
			}
		}
		return s.store.DeletePartner(ctx, id)
	})
	if err != nil {
		return err
	}

	s.log.WithField("partner_id", id).Info("Partner deleted")
	return nil
}

// PartnerSummary totals a partner's balances and active loans, one amount per currency
func (s *Service) PartnerSummary(ctx context.Context, sess models.Session, id uuid.UUID) (*models.PartnerSummary, error) {
	if _, err := s.store.GetPartner(ctx, id); err != nil {
		return nil, err
	}

	accounts, err := s.store.SearchAccounts(ctx, repository.Eq("owner_id", id))
	if err != nil {
		return nil, err
	}
	balances := &moneyTotals{}
	for _, a := range accounts {
		// search results carry no transactions
		full, err := s.store.GetAccount(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		balances.add(full.Balance())
	}

	loans, err := s.store.SearchLoans(ctx, repository.Eq("owner_id", id), repository.Eq("status", string(models.LoanActive)))
	if err != nil {
		return nil, err
	}
	principal := &moneyTotals{}
	for _, l := range loans {
		principal.add(l.Principal())
	}

	openTickets, err := s.store.CountTickets(ctx,
		repository.Eq("partner_id", id),
		repository.Filter{Column: "state", Op: repository.OpNe, Value: string(models.TicketDone)},
		repository.Filter{Column: "state", Op: repository.OpNe, Value: string(models.TicketCancelled)},
	)
	if err != nil {
		return nil, err
	}

	return &models.PartnerSummary{
		TotalAccountBalance: balances.list(),
		TotalLoanAmount:     principal.list(),
		ActiveLoans:         len(loans),
		OpenTickets:         openTickets,
	}, nil
}

// moneyTotals sums amounts per currency in order of first appearance
type moneyTotals struct {
	totals []models.Money
}

func (t *moneyTotals) add(m models.Money) {
	for i, total := range t.totals {
		if total.Currency == m.Currency {
			t.totals[i].Value = total.Value.Add(m.Value)
			return
		}
	}
	t.totals = append(t.totals, m)
}

func (t *moneyTotals) list() []models.Money {
	if t.totals == nil {
		return []models.Money{}
	}
	return t.totals
}
