package core

import "sort"

// RevenueDivisor scales quantity*unitPrice into billions of currency units.
// Other dashboard chapters report figures on the same scale; the constant
// must not change.
const RevenueDivisor = 1_000_000_000

// BatchRevenue returns the scaled revenue of a single batch.
func BatchRevenue(b Batch) float64 {
	q := b.Quantity
	p := b.UnitPrice
	if q < 0 {
		q = 0
	}
	if p < 0 {
		p = 0
	}
	return q * p / RevenueDivisor
}

type (
	// CategoryTotal is the rollup for one category tag.
	CategoryTotal struct {
		Revenue  float64 `json:"revenue"`
		Quantity float64 `json:"quantity"`
		Count    int     `json:"count"`
	}

	// ItemTotal merges batches sharing an identical name across all
	// resources in the aggregation input.
	ItemTotal struct {
		Name         string  `json:"name"`
		Category     string  `json:"category"`
		ResourceName string  `json:"resourceName"`
		Batches      int     `json:"batches"`
		Quantity     float64 `json:"quantity"`
		Revenue      float64 `json:"revenue"`

		earliestStart string
	}

	// MonthSummary is the aggregate view over a month's resource logs.
	MonthSummary struct {
		ByCategory    map[string]CategoryTotal `json:"byCategory"`
		ByItem        []ItemTotal              `json:"byItem"`
		TotalRevenue  float64                  `json:"totalRevenue"`
		TotalQuantity float64                  `json:"totalQuantity"`
	}
)

// Aggregate rolls up all batches in the given logs into per-category and
// per-item revenue/quantity summaries. The category totals always sum to
// TotalRevenue: both walk the same batch list.
func Aggregate(logs []ResourceLog) MonthSummary {
	return AggregateNamed(logs, nil)
}

// AggregateNamed is Aggregate with a resource-id to display-name mapping for
// the per-item rows. Unknown ids fall back to the raw id.
func AggregateNamed(logs []ResourceLog, resourceNames map[string]string) MonthSummary {
	sum := MonthSummary{ByCategory: map[string]CategoryTotal{}}
	items := map[string]*ItemTotal{}
	var order []string

	for _, l := range logs {
		for _, b := range l.Batches {
			rev := BatchRevenue(b)
			qty := b.Quantity
			if qty < 0 {
				qty = 0
			}
			tag := ResolveCategory(b.Category).Tag

			ct := sum.ByCategory[tag]
			ct.Revenue += rev
			ct.Quantity += qty
			ct.Count++
			sum.ByCategory[tag] = ct

			sum.TotalRevenue += rev
			sum.TotalQuantity += qty

			it, ok := items[b.Name]
			if !ok {
				resName := l.ResourceID
				if n, found := resourceNames[l.ResourceID]; found {
					resName = n
				}
				it = &ItemTotal{
					Name:          b.Name,
					Category:      tag,
					ResourceName:  resName,
					earliestStart: b.StartDate,
				}
				items[b.Name] = it
				order = append(order, b.Name)
			}
			it.Batches++
			it.Quantity += qty
			it.Revenue += rev
			if b.StartDate != "" && (it.earliestStart == "" || b.StartDate < it.earliestStart) {
				it.earliestStart = b.StartDate
			}
		}
	}

	sum.ByItem = make([]ItemTotal, 0, len(order))
	for _, name := range order {
		sum.ByItem = append(sum.ByItem, *items[name])
	}
	// Revenue descending; ties broken by earliest start date, lexicographic.
	sort.SliceStable(sum.ByItem, func(i, j int) bool {
		if sum.ByItem[i].Revenue != sum.ByItem[j].Revenue {
			return sum.ByItem[i].Revenue > sum.ByItem[j].Revenue
		}
		return sum.ByItem[i].earliestStart < sum.ByItem[j].earliestStart
	})
	return sum
}
