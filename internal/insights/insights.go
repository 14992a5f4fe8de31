// Package insights summarizes a raw invoice dataset before segmentation:
// null counts, product and invoice totals, and revenue per country.
package insights

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/customer-segmentation/internal/dataset"
	"github.com/dvloznov/customer-segmentation/internal/domain"
	"github.com/dvloznov/customer-segmentation/internal/rfm"
)

// DefaultTop is the length of the ranked lists in a Report.
const DefaultTop = 5

type ColumnCount struct {
	Column string
	Nulls  int
}

type ProductQuantity struct {
	Description string
	Quantity    int64
}

type PricedItem struct {
	StockCode   string
	Description string
	Price       decimal.Decimal
}

type CountryCount struct {
	Country string
	Lines   int
}

type CountryRevenue struct {
	Country string
	Revenue decimal.Decimal
}

// Report describes a dataset. Null counts, descriptions, products and
// invoices cover every row; prices and country figures skip cancellations.
type Report struct {
	Rows                 int
	NullCounts           []ColumnCount
	DistinctDescriptions int
	TopProducts          []ProductQuantity
	Invoices             int

	MostExpensive     []PricedItem
	LinesByCountry    []CountryCount
	RevenueByCountry  []CountryRevenue
	Revenue           decimal.Decimal
	AveragePerInvoice decimal.Decimal
}

// Explore builds a Report over rows, keeping top entries in each ranked list.
func Explore(rows []domain.Row, marker string, top int) Report {
	if top <= 0 {
		top = DefaultTop
	}

	rep := Report{Rows: len(rows), NullCounts: nullCounts(rows)}

	descriptions := make(map[string]struct{})
	quantities := make(map[string]int64)
	invoices := make(map[string]struct{})
	for _, r := range rows {
		if r.Description.Valid {
			descriptions[r.Description.StringVal] = struct{}{}
			if r.Quantity.Valid {
				quantities[r.Description.StringVal] += r.Quantity.Int64
			}
		}
		if r.Invoice.Valid {
			invoices[r.Invoice.StringVal] = struct{}{}
		}
	}
	rep.DistinctDescriptions = len(descriptions)
	rep.Invoices = len(invoices)

	for desc, qty := range quantities {
		rep.TopProducts = append(rep.TopProducts, ProductQuantity{Description: desc, Quantity: qty})
	}
	sort.Slice(rep.TopProducts, func(i, j int) bool {
		a, b := rep.TopProducts[i], rep.TopProducts[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.Description < b.Description
	})
	rep.TopProducts = head(rep.TopProducts, top)

	lines := make(map[string]int)
	revenue := make(map[string]decimal.Decimal)
	sales := make(map[string]struct{})
	rep.Revenue = decimal.Zero
	for _, r := range rows {
		if rfm.IsCancelled(r.Invoice.StringVal, r.Invoice.Valid, marker) {
			continue
		}
		if r.Price.Valid {
			rep.MostExpensive = append(rep.MostExpensive, PricedItem{
				StockCode:   r.StockCode.StringVal,
				Description: r.Description.StringVal,
				Price:       r.Price.Decimal,
			})
		}
		if r.Country.Valid {
			lines[r.Country.StringVal]++
		}
		if !r.Quantity.Valid || !r.Price.Valid {
			continue
		}
		total := r.Price.Decimal.Mul(decimal.NewFromInt(r.Quantity.Int64))
		rep.Revenue = rep.Revenue.Add(total)
		if r.Country.Valid {
			revenue[r.Country.StringVal] = revenue[r.Country.StringVal].Add(total)
		}
		if r.Invoice.Valid {
			sales[r.Invoice.StringVal] = struct{}{}
		}
	}

	sort.SliceStable(rep.MostExpensive, func(i, j int) bool {
		return rep.MostExpensive[i].Price.GreaterThan(rep.MostExpensive[j].Price)
	})
	rep.MostExpensive = head(rep.MostExpensive, top)

	for country, n := range lines {
		rep.LinesByCountry = append(rep.LinesByCountry, CountryCount{Country: country, Lines: n})
	}
	sort.Slice(rep.LinesByCountry, func(i, j int) bool {
		a, b := rep.LinesByCountry[i], rep.LinesByCountry[j]
		if a.Lines != b.Lines {
			return a.Lines > b.Lines
		}
		return a.Country < b.Country
	})

	for country, total := range revenue {
		rep.RevenueByCountry = append(rep.RevenueByCountry, CountryRevenue{Country: country, Revenue: total})
	}
	sort.Slice(rep.RevenueByCountry, func(i, j int) bool {
		a, b := rep.RevenueByCountry[i], rep.RevenueByCountry[j]
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		return a.Country < b.Country
	})
	rep.RevenueByCountry = head(rep.RevenueByCountry, top)

	rep.AveragePerInvoice = decimal.Zero
	if len(sales) > 0 {
		rep.AveragePerInvoice = rep.Revenue.Div(decimal.NewFromInt(int64(len(sales))))
	}
	return rep
}

func nullCounts(rows []domain.Row) []ColumnCount {
	counts := make([]ColumnCount, len(dataset.RequiredColumns))
	for i, col := range dataset.RequiredColumns {
		counts[i].Column = col
	}
	for _, r := range rows {
		for i, valid := range []bool{
			r.Invoice.Valid, r.StockCode.Valid, r.Description.Valid, r.Quantity.Valid,
			r.InvoiceDate.Valid, r.Price.Valid, r.CustomerID.Valid, r.Country.Valid,
		} {
			if !valid {
				counts[i].Nulls++
			}
		}
	}
	return counts
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
