package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
)

const csvHeader = "Bill Number,Date,Customer Name,Phone,Items,Quantity,Total Amount,Payment Method"

// WriteCSV writes one row per bill. Text columns are always quoted; the
// quantity and total columns are bare numbers.
func WriteCSV(out io.Writer, bills []domain.Bill, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	w := bufio.NewWriter(out)
	if _, err := w.WriteString(csvHeader + "\n"); err != nil {
		return err
	}

	for _, bill := range bills {
		names := make([]string, 0, len(bill.Items))
		for _, line := range bill.Items {
			names = append(names, line.Name)
		}
		method := bill.PaymentMethod
		if method == "" {
			method = domain.PaymentCash
		}

		row := fmt.Sprintf("%s,%s,%s,%s,%s,%d,%s,%s\n",
			quote(bill.BillNumber),
			quote(bill.CreatedAt.In(loc).Format("1/2/2006, 3:04:05 PM")),
			quote(bill.CustomerName),
			quote(bill.CustomerPhone),
			quote(strings.Join(names, "; ")),
			bill.TotalQuantity(),
			bill.Total.StringFixed(2),
			quote(method),
		)
		if _, err := w.WriteString(row); err != nil {
			return err
		}
	}
	return w.Flush()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
