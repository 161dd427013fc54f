package service

import (
	"bytes"
	"context"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/report"
)

func (s *Service) Report(ctx context.Context, period string, q report.Query) (domain.Report, error) {
	window, bills, err := s.reportBills(ctx, period, q)
	if err != nil {
		return domain.Report{}, err
	}

	ids := make([]string, 0, len(bills))
	seen := map[string]struct{}{}
	for _, bill := range bills {
		for _, line := range bill.Items {
			if _, ok := seen[line.ID]; ok {
				continue
			}
			seen[line.ID] = struct{}{}
			ids = append(ids, line.ID)
		}
	}
	items, err := s.repo.GetItemsByIDs(ctx, ids)
	if err != nil {
		return domain.Report{}, err
	}
	categories := make(map[string]string, len(items))
	for id, item := range items {
		categories[id] = item.Category
	}

	return report.Build(window, bills, categories), nil
}

// ExportReport renders the bills of a report window as CSV and returns the
// attachment filename with it.
func (s *Service) ExportReport(ctx context.Context, period string, q report.Query) (string, []byte, error) {
	window, bills, err := s.reportBills(ctx, period, q)
	if err != nil {
		return "", nil, err
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, bills, s.location); err != nil {
		return "", nil, err
	}
	return window.Filename(), buf.Bytes(), nil
}

func (s *Service) reportBills(ctx context.Context, period string, q report.Query) (report.Window, []domain.Bill, error) {
	p, err := report.ParsePeriod(period)
	if err != nil {
		return report.Window{}, nil, err
	}
	window, err := report.WindowFor(p, q, s.now(), s.location)
	if err != nil {
		return report.Window{}, nil, err
	}
	bills, err := s.repo.ListBills(ctx, window.From, window.To)
	if err != nil {
		return report.Window{}, nil, err
	}
	return window, bills, nil
}
