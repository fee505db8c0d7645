package screen

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
)

// IngestPayload converts the report to the results-service wire
// format: one flat row per result with factor values spread into
// factor_<id> keys, plus a run log entry.
func (r *Report) IngestPayload() map[string]any {
	results := make([]map[string]any, 0, len(r.Results))
	for _, res := range r.Results {
		row := map[string]any{
			"code":         res.Code,
			"name":         res.Name,
			"combination":  res.Combination,
			"latest_price": res.LatestPrice,
		}
		for fid, v := range res.FactorValues {
			row["factor_"+fid] = v
		}
		results = append(results, row)
	}

	payload := map[string]any{
		"run_date": r.RunDate,
		"results":  results,
		"run_log": map[string]any{
			"run_date":         r.RunDate,
			"total_stocks":     r.TotalStocks,
			"passed_stocks":    len(r.Results),
			"duration_seconds": round2(r.Duration.Seconds()),
			"status":           "success",
		},
	}

	if len(r.Combinations) > 0 {
		combos := make([]map[string]any, 0, len(r.Combinations))
		for _, c := range r.Combinations {
			combos = append(combos, map[string]any{
				"id":          c.ID,
				"label":       c.Label,
				"description": c.Description,
				"entry_rule":  c.EntryRule,
				"exit_rule":   c.ExitRule,
				"factors":     c.FactorIDs,
			})
		}
		payload["combinations"] = combos
	}
	return payload
}

type resultDoc struct {
	Code          string             `json:"code"`
	Name          string             `json:"name"`
	Combination   string             `json:"combination"`
	RunDate       string             `json:"run_date"`
	LatestPrice   float64            `json:"latest_price"`
	FactorValues  map[string]float64 `json:"factor_values"`
	FactorDetails map[string]string  `json:"factor_details"`
}

type reportDoc struct {
	RunID             string         `json:"run_id"`
	RunDate           string         `json:"run_date"`
	TotalStocks       int            `json:"total_stocks"`
	PassedStocks      int            `json:"passed_stocks"`
	DurationSeconds   float64        `json:"duration_seconds"`
	CombinationCounts map[string]int `json:"combination_counts"`
	Results           []resultDoc    `json:"results"`
}

// MarshalJSON renders the report as an indented archive document.
func MarshalJSON(r *Report) ([]byte, error) {
	results := make([]resultDoc, len(r.Results))
	for i, res := range r.Results {
		results[i] = resultDoc{
			Code:          res.Code,
			Name:          res.Name,
			Combination:   res.Combination,
			RunDate:       res.RunDate,
			LatestPrice:   res.LatestPrice,
			FactorValues:  res.FactorValues,
			FactorDetails: res.FactorDetails,
		}
	}
	return json.MarshalIndent(reportDoc{
		RunID:             r.RunID,
		RunDate:           r.RunDate,
		TotalStocks:       r.TotalStocks,
		PassedStocks:      len(r.Results),
		DurationSeconds:   round2(r.Duration.Seconds()),
		CombinationCounts: r.CombinationCounts,
		Results:           results,
	}, "", "  ")
}

// ExportCSV writes the screening results to path with a UTF-8 BOM so
// Excel opens the Chinese headers correctly.
func ExportCSV(path string, r *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString("\uFEFF"); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	w := csv.NewWriter(f)
	header := []string{"代码", "名称", "组合", "运行日期", "最新价", "因子"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, res := range r.Results {
		row := []string{
			res.Code, res.Name, res.Combination, res.RunDate,
			fmt.Sprintf("%.2f", res.LatestPrice),
			factorSummary(res.FactorValues),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// factorSummary renders factor values as "id=value" pairs, id-sorted.
func factorSummary(values map[string]float64) string {
	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := ""
	for i, id := range ids {
		if i > 0 {
			out += "; "
		}
		out += id + "=" + strconv.FormatFloat(values[id], 'f', 2, 64)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
