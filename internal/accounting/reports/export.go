package reports

import (
	"encoding/csv"
	"io"
)

// WriteTrialBalanceCSV serialises the grouped trial balance, one row per
// leaf account with a totals row per group and a grand total at the end.
func WriteTrialBalanceCSV(w io.Writer, tb TrialBalance) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Group", "Code", "Name", "Opening", "Debit", "Credit", "Closing"}); err != nil {
		return err
	}
	for _, group := range tb.Groups {
		for _, acc := range group.Accounts {
			if err := writer.Write([]string{
				group.Key,
				acc.Code,
				acc.Name,
				acc.Opening.StringFixed(2),
				acc.Debit.StringFixed(2),
				acc.Credit.StringFixed(2),
				acc.Closing.StringFixed(2),
			}); err != nil {
				return err
			}
		}
		if err := writer.Write([]string{
			group.Key,
			"",
			"Group Total",
			group.Opening.StringFixed(2),
			group.Debit.StringFixed(2),
			group.Credit.StringFixed(2),
			group.Closing.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{
		"",
		"",
		"Total",
		tb.TotalOpening.StringFixed(2),
		tb.TotalDebit.StringFixed(2),
		tb.TotalCredit.StringFixed(2),
		tb.TotalClosing.StringFixed(2),
	}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}
