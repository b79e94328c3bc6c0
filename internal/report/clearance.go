package report

import (
	"fmt"
	"io"

	"inventory-intel/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	recommendationsSheet = "Recommendations"
	summarySheet         = "Summary"
)

var clearanceHeadings = []string{
	"SKU", "Product", "Tier", "Quantity", "Current Price", "Recommended Price",
	"Discount %", "Protection %", "Urgency", "Seasonal", "Days To Season End",
	"Recovery Potential", "Reasoning",
}

// ClearanceWorkbook renders a clearance batch as a two-sheet workbook.
func ClearanceWorkbook(batch *models.ClearanceBatch) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", recommendationsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	for i, h := range clearanceHeadings {
		if err := f.SetCellValue(recommendationsSheet, cell(i, 1), h); err != nil {
			return nil, err
		}
	}

	for i, r := range batch.Recommendations {
		row := i + 2
		days := ""
		if r.DaysToSeasonalEnd != nil {
			days = fmt.Sprint(*r.DaysToSeasonalEnd)
		}
		values := []interface{}{
			r.SKU, r.ProductTitle, r.ClearanceTier, r.Quantity, r.CurrentPrice, r.RecommendedPrice,
			r.DiscountPercentage, r.ProtectionThreshold, r.UrgencyScore, r.SeasonalUrgency, days,
			r.CashRecoveryPotential, r.Reasoning,
		}
		for col, v := range values {
			if err := f.SetCellValue(recommendationsSheet, cell(col, row), v); err != nil {
				return nil, err
			}
		}
	}

	summary := [][2]interface{}{
		{"Batch", batch.ID},
		{"Mode", batch.Mode},
		{"Generated At", batch.GeneratedAt.Format("2006-01-02 15:04")},
		{"Items", len(batch.Recommendations)},
		{"Total Recovery Potential", batch.TotalRecoveryPotential},
		{"Average Discount %", batch.AverageDiscount},
		{"Cash Impact Score", batch.CashImpactScore},
		{"Estimated Clearance Weeks", batch.EstimatedClearanceWeeks},
	}
	for i, kv := range summary {
		if err := f.SetCellValue(summarySheet, cell(0, i+1), kv[0]); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(summarySheet, cell(1, i+1), kv[1]); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// WriteClearance streams the workbook for batch to w.
func WriteClearance(w io.Writer, batch *models.ClearanceBatch) error {
	f, err := ClearanceWorkbook(batch)
	if err != nil {
		return fmt.Errorf("build clearance workbook: %w", err)
	}
	defer f.Close()
	return f.Write(w)
}

// SaveClearance writes the workbook for batch to path.
func SaveClearance(path string, batch *models.ClearanceBatch) error {
	f, err := ClearanceWorkbook(batch)
	if err != nil {
		return fmt.Errorf("build clearance workbook: %w", err)
	}
	defer f.Close()
	return f.SaveAs(path)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row)
	return name
}
