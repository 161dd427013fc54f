package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
)

type Period string

const (
	Daily   Period = "daily"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

// Query holds the raw query parameters of a report request. Empty values
// default to the current day, month or year.
type Query struct {
	Date  string
	Month string
	Year  string
}

// Window is a half-open time range [From, To) in the report location.
type Window struct {
	Period Period
	From   time.Time
	To     time.Time
}

func ParsePeriod(raw string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case Daily, Monthly, Yearly:
		return p, nil
	}
	return "", domain.Invalid("period", "must be one of daily, monthly, yearly")
}

func WindowFor(period Period, q Query, now time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)

	switch period {
	case Daily:
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		if raw := strings.TrimSpace(q.Date); raw != "" {
			parsed, err := parseDate(raw, loc)
			if err != nil {
				return Window{}, err
			}
			day = parsed
		}
		return Window{Period: Daily, From: day, To: day.AddDate(0, 0, 1)}, nil

	case Monthly:
		year, err := parseYear(q.Year, now.Year())
		if err != nil {
			return Window{}, err
		}
		month := int(now.Month())
		if raw := strings.TrimSpace(q.Month); raw != "" {
			m, err := strconv.Atoi(raw)
			if err != nil || m < 1 || m > 12 {
				return Window{}, domain.Invalid("month", "must be a number from 1 to 12")
			}
			month = m
		}
		start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
		return Window{Period: Monthly, From: start, To: start.AddDate(0, 1, 0)}, nil

	case Yearly:
		year, err := parseYear(q.Year, now.Year())
		if err != nil {
			return Window{}, err
		}
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
		return Window{Period: Yearly, From: start, To: start.AddDate(1, 0, 0)}, nil
	}
	return Window{}, domain.Invalid("period", "must be one of daily, monthly, yearly")
}

// Report windows stay inside the range stores can represent as Unix
// nanoseconds.
const (
	minYear = 1900
	maxYear = 2200
)

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		t, rfcErr := time.Parse(time.RFC3339, raw)
		if rfcErr != nil {
			return time.Time{}, domain.Invalid("date", "must be formatted as YYYY-MM-DD")
		}
		t = t.In(loc)
		day = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}
	if day.Year() < minYear || day.Year() > maxYear {
		return time.Time{}, domain.Invalid("date", fmt.Sprintf("year must be between %d and %d", minYear, maxYear))
	}
	return day, nil
}

func parseYear(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	y, err := strconv.Atoi(raw)
	if err != nil || y < minYear || y > maxYear {
		return 0, domain.Invalid("year", fmt.Sprintf("must be a year between %d and %d", minYear, maxYear))
	}
	return y, nil
}

// Label is the window start as YYYY-MM-DD.
func (w Window) Label() string {
	return w.From.Format("2006-01-02")
}

func (w Window) Filename() string {
	switch w.Period {
	case Monthly:
		return fmt.Sprintf("sales_report_monthly_%d_%d.csv", w.From.Year(), int(w.From.Month()))
	case Yearly:
		return fmt.Sprintf("sales_report_yearly_%d.csv", w.From.Year())
	default:
		return fmt.Sprintf("sales_report_daily_%s.csv", w.Label())
	}
}

// Build aggregates bills that fall in w. categories maps item id to its
// current category; ids missing from it count as "unknown".
func Build(w Window, bills []domain.Bill, categories map[string]string) domain.Report {
	loc := w.From.Location()
	rep := domain.Report{
		Period:         string(w.Period),
		Date:           w.Label(),
		TotalRevenue:   decimal.Zero,
		CategoryStats:  map[string]*domain.CategoryStat{},
		DailyBreakdown: map[string]*domain.DailyStat{},
		Bills:          make([]domain.BillSummary, 0, len(bills)),
	}

	revenue := decimal.Zero
	for _, bill := range bills {
		rep.TotalBills++
		revenue = revenue.Add(bill.Total)

		for _, line := range bill.Items {
			category, ok := categories[line.ID]
			if !ok || category == "" {
				category = domain.CategoryUnknown
			}
			stat, ok := rep.CategoryStats[category]
			if !ok {
				stat = &domain.CategoryStat{Revenue: decimal.Zero}
				rep.CategoryStats[category] = stat
			}
			stat.Count++
			stat.Quantity += line.Quantity
			stat.Revenue = stat.Revenue.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		if w.Period != Daily {
			day := bill.CreatedAt.In(loc).Format("2006-01-02")
			stat, ok := rep.DailyBreakdown[day]
			if !ok {
				stat = &domain.DailyStat{Revenue: decimal.Zero}
				rep.DailyBreakdown[day] = stat
			}
			stat.BillCount++
			stat.Revenue = stat.Revenue.Add(bill.Total)
		}

		rep.Bills = append(rep.Bills, domain.BillSummary{
			ID:         bill.ID,
			BillNumber: bill.BillNumber,
			Total:      bill.Total,
			CreatedAt:  bill.CreatedAt,
		})
	}
	rep.TotalRevenue = revenue.Round(2)
	return rep
}
