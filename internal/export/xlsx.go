// Package export builds the operator's "all responses" workbook.
package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ldi/marathon/internal/db"
)

const sheet = "Responses"

var header = []string{"Telegram ID", "Full name", "Region", "Email", "Day", "Task", "#", "Response", "Sent at"}

// BuildWorkbook renders one row per response across all users, in catalog
// order per user. Only the latest run per post contributes, matching the
// user-facing summary.
func BuildWorkbook(ctx context.Context, store *db.DB) ([]byte, error) {
	users, err := store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	row := 2
	for _, u := range users {
		summaries, err := store.SummaryForUser(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		for _, item := range summaries {
			for _, resp := range item.Responses {
				values := []any{
					u.TelegramID, u.FullName, u.Region, u.Email,
					item.Post.Position, item.Post.Title, resp.Seq, resp.Text,
					resp.CreatedAt.Format("2006-01-02 15:04"),
				}
				for col, v := range values {
					cell, err := excelize.CoordinatesToCellName(col+1, row)
					if err != nil {
						return nil, err
					}
					if err := f.SetCellValue(sheet, cell, v); err != nil {
						return nil, fmt.Errorf("failed to write row: %w", err)
					}
				}
				row++
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
