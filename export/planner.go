package export

import "fmt"

// ChunkRange covers records [Start, End], 1-indexed inclusive.
type ChunkRange struct {
	Batch int
	Start int
	End   int
}

func (r ChunkRange) Count() int {
	return r.End - r.Start + 1
}

// Plan is the output strategy for one export job.
type Plan struct {
	Strategy  Strategy
	ChunkSize int
	Chunks    []ChunkRange
}

// PlanStrategy decides single vs. multi output. Multi applies when the
// record count exceeds the template ceiling or the global cap, or when the
// caller forces chunking. A count exactly at the ceiling stays single.
func PlanStrategy(tmpl Template, req ExportRequest, total int, defaultChunkSize int) (Plan, error) {
	ceiling := tmpl.MaxRecordsSingleFile
	if ceiling <= 0 {
		ceiling = GlobalMaxRecords
	}

	multi := total > ceiling || total > GlobalMaxRecords || req.ForceChunking
	if !multi {
		return Plan{Strategy: StrategySingle}, nil
	}

	// CSV output produces exactly one file, so it is not eligible for the
	// automatic multi-file strategy.
	if req.Format == FormatCSV && !req.ForceChunking {
		return Plan{}, NewError(KindTemplateLimit,
			fmt.Sprintf("record count %d exceeds the %q template limit of %d for csv output", total, tmpl.Name, ceiling), nil)
	}

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = tmpl.RecommendedChunkSize
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkSize <= 0 {
		return Plan{}, NewError(KindValidation, "chunk size must be positive", nil)
	}

	plan := Plan{Strategy: StrategyMulti, ChunkSize: chunkSize}
	if total == 0 {
		// Degenerate forced chunking on an empty set: one header-only chunk.
		plan.Chunks = []ChunkRange{{Batch: 1, Start: 1, End: 0}}
		return plan, nil
	}
	for start := 1; start <= total; start += chunkSize {
		end := start + chunkSize - 1
		if end > total {
			end = total
		}
		plan.Chunks = append(plan.Chunks, ChunkRange{
			Batch: len(plan.Chunks) + 1,
			Start: start,
			End:   end,
		})
	}
	return plan, nil
}
