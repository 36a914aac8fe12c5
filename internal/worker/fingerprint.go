package worker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"consultoria/internal/records"
)

// fingerprint identifies the exported content of a collection. Documents are
// not part of the workbook and are left out.
func fingerprint(snaps []records.Snapshot) string {
	h := sha256.New()
	for _, s := range snaps {
		fmt.Fprintf(h, "%d|%s|%s|%s|%s|%d|%s|%s|%s|%s|%s|%v\n",
			s.ID, s.Client, s.Occupation, s.Phone, s.Email, s.Age, s.Sex,
			s.PeriodLabel, s.TotalIncome, s.TotalExpense, s.Balance, s.ProjectedSavings)
	}
	return hex.EncodeToString(h.Sum(nil))
}
