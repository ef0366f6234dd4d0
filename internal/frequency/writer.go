package frequency

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

const rowFormat = "%-12s %-12s %-10s %-12s %-12s %-10s %-12s\n"

// Header is the first line of the fixed-width table.
var Header = strings.TrimSuffix(fmt.Sprintf(rowFormat,
	"sample", "total_count", "b_cell%", "cd8_t_cell%", "cd4_t_cell%", "nk_cell%", "monocyte%"), "\n")

// WriteTable writes the header and one fixed-width line per sample.
func WriteTable(w io.Writer, rows []SampleFrequency) error {
	if _, err := io.WriteString(w, Header+"\n"); err != nil {
		return fmt.Errorf("frequency: write header: %w", err)
	}
	for _, r := range rows {
		if _, err := io.WriteString(w, FormatRow(r)); err != nil {
			return fmt.Errorf("frequency: write %s: %w", r.Sample, err)
		}
	}
	return nil
}

// FormatRow renders one sample as a newline-terminated table line.
func FormatRow(r SampleFrequency) string {
	return fmt.Sprintf(rowFormat,
		r.Sample,
		strconv.FormatInt(r.TotalCount, 10),
		FormatPercent(r.BCell),
		FormatPercent(r.CD8TCell),
		FormatPercent(r.CD4TCell),
		FormatPercent(r.NKCell),
		FormatPercent(r.Monocyte),
	)
}

// FormatPercent renders v in its shortest form, always with a fractional
// part: 50 -> "50.0", 3.13 -> "3.13".
func FormatPercent(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
