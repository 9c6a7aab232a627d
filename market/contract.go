package market

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/futuresim/pricing"
)

// monthCodes are the exchange delivery month letters, January first.
const monthCodes = "FGHJKMNQUVXZ"

// ContractCode formats a delivery contract as "2024H".
func ContractCode(year int, month time.Month) string {
	return fmt.Sprintf("%04d%c", year, monthCodes[month-1])
}

// DeliveryMonth parses a contract code into the first day of its delivery month.
func DeliveryMonth(code string) (time.Time, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 5 {
		return time.Time{}, fmt.Errorf("contract %q: want YYYYM", code)
	}
	year, err := strconv.Atoi(code[:4])
	if err != nil {
		return time.Time{}, fmt.Errorf("contract %q: bad year: %w", code, err)
	}
	m := strings.IndexByte(monthCodes, code[4])
	if m < 0 {
		return time.Time{}, fmt.Errorf("contract %q: bad month code %q", code, code[4])
	}
	return pricing.Date(year, time.Month(m+1), 1), nil
}

// MonthLetter returns the delivery month letter of a contract code.
func MonthLetter(code string) byte {
	if len(code) == 0 {
		return 0
	}
	return strings.ToUpper(code)[len(code)-1]
}

// SortContracts orders contract codes by delivery month. Unparseable codes
// sort last, alphabetically.
func SortContracts(codes []string) {
	sort.SliceStable(codes, func(i, j int) bool {
		a, errA := DeliveryMonth(codes[i])
		b, errB := DeliveryMonth(codes[j])
		switch {
		case errA != nil && errB != nil:
			return codes[i] < codes[j]
		case errA != nil:
			return false
		case errB != nil:
			return true
		}
		return a.Before(b)
	})
}
