package dto

import (
	"time"

	"github.com/flexprice/bookingpay/internal/domain/revenue"
	"github.com/shopspring/decimal"
)

// RevenueRow is one provider month of the report
type RevenueRow struct {
	ProviderID   string          `json:"provider_id"`
	Month        time.Time       `json:"month"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	Commission   decimal.Decimal `json:"commission"`
	NetIncome    decimal.Decimal `json:"net_income"`
	Inconsistent bool            `json:"inconsistent,omitempty"`
}

// ProviderRevenueSummary sums every month of one provider in the report
type ProviderRevenueSummary struct {
	ProviderID  string          `json:"provider_id"`
	TotalIncome decimal.Decimal `json:"total_income"`
	Commission  decimal.Decimal `json:"commission"`
	NetIncome   decimal.Decimal `json:"net_income"`
}

// RevenueReportResponse is the aggregated revenue report
type RevenueReportResponse struct {
	Rows      []*RevenueRow             `json:"rows"`
	Providers []*ProviderRevenueSummary `json:"providers"`
	Totals    ProviderRevenueSummary    `json:"totals"`
}

// NewRevenueReportResponse aggregates buckets per provider, keeping the input order
func NewRevenueReportResponse(revenues []*revenue.Revenue) *RevenueReportResponse {
	resp := &RevenueReportResponse{
		Rows:      make([]*RevenueRow, 0, len(revenues)),
		Providers: make([]*ProviderRevenueSummary, 0),
		Totals: ProviderRevenueSummary{
			TotalIncome: decimal.Zero,
			Commission:  decimal.Zero,
			NetIncome:   decimal.Zero,
		},
	}

	byProvider := make(map[string]*ProviderRevenueSummary)
	for _, r := range revenues {
		resp.Rows = append(resp.Rows, &RevenueRow{
			ProviderID:   r.ProviderID,
			Month:        r.Month,
			TotalIncome:  r.TotalIncome,
			Commission:   r.Commission,
			NetIncome:    r.NetIncome,
			Inconsistent: r.Inconsistent,
		})

		summary, ok := byProvider[r.ProviderID]
		if !ok {
			summary = &ProviderRevenueSummary{
				ProviderID:  r.ProviderID,
				TotalIncome: decimal.Zero,
				Commission:  decimal.Zero,
				NetIncome:   decimal.Zero,
			}
			byProvider[r.ProviderID] = summary
			resp.Providers = append(resp.Providers, summary)
		}
		summary.TotalIncome = summary.TotalIncome.Add(r.TotalIncome)
		summary.Commission = summary.Commission.Add(r.Commission)
		summary.NetIncome = summary.NetIncome.Add(r.NetIncome)

		resp.Totals.TotalIncome = resp.Totals.TotalIncome.Add(r.TotalIncome)
		resp.Totals.Commission = resp.Totals.Commission.Add(r.Commission)
		resp.Totals.NetIncome = resp.Totals.NetIncome.Add(r.NetIncome)
	}

	return resp
}
