// Package batch owns the visitor pass identifier format: VMS-<DDMMYYYY>-<NNNN>.
// The date half is resolved in the deployment's local time zone and the numeric
// suffix is zero-padded to four digits, widening (never wrapping) past 9999.
package batch

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// NumberPrefix is the constant leading token of every batch number.
	NumberPrefix = "VMS"
	// suffixWidth is the minimum zero-padded width of the sequence part.
	suffixWidth = 4
)

// DateKey renders t in the given location as DDMMYYYY, the embedded-date form
// used inside batch numbers and as the counter-table key.
func DateKey(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("02012006")
}

// Prefix returns the date-scoped prefix ("VMS-<DDMMYYYY>") for a date key.
func Prefix(dateKey string) string {
	return NumberPrefix + "-" + dateKey
}

// Format assembles a full batch number from a date key and a sequence value.
// Sequences above 9999 keep their natural width; truncation would collide.
func Format(dateKey string, seq int64) string {
	return fmt.Sprintf("%s-%s-%0*d", NumberPrefix, dateKey, suffixWidth, seq)
}

// Suffix extracts the numeric sequence from a batch number. Returns an error
// when the trailing segment is not numeric.
func Suffix(batchNo string) (int64, error) {
	idx := strings.LastIndex(batchNo, "-")
	if idx < 0 || idx == len(batchNo)-1 {
		return 0, fmt.Errorf("malformed batch number %q", batchNo)
	}
	seq, err := strconv.ParseInt(batchNo[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed batch number %q: %w", batchNo, err)
	}
	return seq, nil
}

// Next computes the candidate batch number that follows lastBatchNo for the
// given date key. An empty lastBatchNo starts the day at 0001.
func Next(dateKey, lastBatchNo string) (string, error) {
	if strings.TrimSpace(lastBatchNo) == "" {
		return Format(dateKey, 1), nil
	}
	last, err := Suffix(lastBatchNo)
	if err != nil {
		return "", err
	}
	return Format(dateKey, last+1), nil
}
