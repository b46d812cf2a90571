package etl

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// readCSVRecords reads a delimited file into flat key-value payloads using
// the first row as the header. Rows shorter than the header are padded with
// empty values; longer rows have their extra fields dropped.
func readCSVRecords(path string) ([]map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		payload := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(record) {
				payload[key] = record[i]
			} else {
				payload[key] = ""
			}
		}
		rows = append(rows, payload)
	}
	return rows, nil
}
