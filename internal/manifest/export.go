package manifest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var csvHeader = []string{
	"subject", "performance", "status", "cameras_extracted", "frames",
	"size_gb", "anno_size_gb", "raw_size_gb", "timestamp", "error",
}

// ExportCSV writes every manifest row to w in the reporting column layout.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer) error {
	records, err := s.List(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, record := range records {
		row := []string{
			record.Subject,
			record.Performance,
			string(record.Status),
			strconv.Itoa(record.CamerasExtracted),
			strconv.Itoa(record.Frames),
			formatGB(record.SizeGB()),
			formatGB(record.AnnoSizeGB()),
			formatGB(record.RawSizeGB()),
			record.UpdatedAt.Format("2006-01-02 15:04:05"),
			record.ErrorMessage,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatGB(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}
