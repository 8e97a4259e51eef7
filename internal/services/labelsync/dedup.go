package labelsync

import "github.com/xelth-com/argoxlabels/internal/models"

// Deduplicate keeps one record per (order, branch, batch). The last occurrence
// wins; the output keeps the position where each key was first seen.
func Deduplicate(records []models.ProductionLabel) []models.ProductionLabel {
	index := make(map[models.LabelKey]int, len(records))
	out := make([]models.ProductionLabel, 0, len(records))

	for _, rec := range records {
		key := rec.Key()
		if i, seen := index[key]; seen {
			out[i] = rec
			continue
		}
		index[key] = len(out)
		out = append(out, rec)
	}
	return out
}
