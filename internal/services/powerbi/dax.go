package powerbi

import (
	"fmt"
	"strings"

	"github.com/xelth-com/argoxlabels/internal/models"
)

// TopN bounds the number of rows a single sync run pulls
const TopN = 5000

// sourceColumns are selected in this order by the DAX query
var sourceColumns = []string{
	models.ColOrderID,
	models.ColOpenedAt,
	models.ColBranchID,
	models.ColProductCode,
	models.ColDescription,
	models.ColBatchCode,
	models.ColComposition,
}

// BuildLabelQuery returns the DAX query selecting the newest TopN production
// rows of table, ordered by opening date descending
func BuildLabelQuery(table string) string {
	ref := "'" + strings.ReplaceAll(table, "'", "''") + "'"

	var b strings.Builder
	b.WriteString("EVALUATE\nSELECTCOLUMNS(\n")
	fmt.Fprintf(&b, "  TOPN(%d, %s, %s[%s], DESC)", TopN, ref, ref, models.ColOpenedAt)
	for _, col := range sourceColumns {
		fmt.Fprintf(&b, ",\n  \"%s\", %s[%s]", col, ref, col)
	}
	b.WriteString("\n)")
	return b.String()
}
