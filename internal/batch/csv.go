package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Row is one CSV row keyed by column header. Missing columns and empty
// cells are both treated as absent fields.
type Row map[string]string

// ParseCSV reads a header-mapped CSV table into rows. Cell values are
// whitespace-trimmed; a UTF-8 BOM on the first header is stripped.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		row := make(Row, len(header))
		for i, cell := range record {
			if i >= len(header) {
				break
			}
			row[header[i]] = strings.TrimSpace(cell)
		}
		rows = append(rows, row)
	}

	return rows, nil
}
