package server

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// parseMonth reads optional year and month query parameters. Absent values
// come back as zero so the pipeline picks the current month.
func parseMonth(q url.Values) (year, month int, err error) {
	if year, err = parseOptionalInt(q, "year"); err != nil {
		return 0, 0, err
	}
	if month, err = parseOptionalInt(q, "month"); err != nil {
		return 0, 0, err
	}
	return year, month, validateMonth(year, month)
}

func parseOptionalInt(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be numeric", name)
	}
	return n, nil
}

// validateMonth allows zero for "not supplied".
func validateMonth(year, month int) error {
	if month != 0 && (month < 1 || month > 12) {
		return fmt.Errorf("month must be between 1 and 12")
	}
	if year != 0 && (year < 1000 || year > 9999) {
		return fmt.Errorf("year must be a 4-digit number")
	}
	return nil
}

// parseBool accepts true/false/1/0/yes/no; absent means false.
func parseBool(q url.Values, name string) (bool, error) {
	raw := strings.ToLower(strings.TrimSpace(q.Get(name)))
	switch raw {
	case "":
		return false, nil
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", name)
	}
	return b, nil
}
