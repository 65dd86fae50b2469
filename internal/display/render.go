package display

import (
	"fmt"
	"strings"

	"boxshop-api/internal/model"
)

// RenderStock renders the canonical stock summary in category order.
func RenderStock(stock []model.StockRecord) string {
	var b strings.Builder
	b.WriteString("📦 **Current Stock:**")
	for _, rec := range stock {
		fmt.Fprintf(&b, "\n%s: %d", rec.Category, rec.Quantity)
	}
	return b.String()
}
