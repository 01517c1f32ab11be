package service

import (
	"strings"
	"testing"
	"time"

	metricdomain "github.com/plantmetrics/plant/internal/metric/domain"
	"github.com/plantmetrics/plant/internal/report/domain"
	tradedomain "github.com/plantmetrics/plant/internal/trade/domain"
)

func TestFileName(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	got := fileName(domain.TypeMetrics, domain.FormatXLSX, start, end)
	want := "Metrics_Report_2025-01-01_to_2025-03-31.xlsx"
	if got != want {
		t.Fatalf("fileName = %q, want %q", got, want)
	}

	got = fileName(domain.TypeFinancial, domain.FormatCSV, start, end)
	if got != "Financial_Report_2025-01-01_to_2025-03-31.csv" {
		t.Fatalf("unexpected file name %q", got)
	}
}

func TestPeriodLabel(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	if got := periodLabel(start, end); got != "2025-06-01 to 2025-06-30" {
		t.Fatalf("periodLabel = %q", got)
	}
}

func TestMetricsSheets(t *testing.T) {
	data := reportData{Metrics: &metricsData{
		Totals: map[metricdomain.Category]int64{
			metricdomain.CategoryParticipation: 3,
			metricdomain.CategoryTrade:         7,
		},
		GrandTotal: 10,
		Details: []metricDetailRow{{
			Date:         time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
			Category:     "trade",
			Value:        7,
			MemberName:   "Alice",
			BusinessName: "Alice Co",
			ChapterName:  "Nairobi West",
		}},
	}}

	sheets := buildSheets(data, domain.GenerateRequest{Type: domain.TypeMetrics})
	if len(sheets) != 2 {
		t.Fatalf("expected 2 sheets, got %d", len(sheets))
	}

	summary := sheets[0]
	// One row per category plus the grand total.
	if len(summary.Rows) != len(metricdomain.Categories())+1 {
		t.Fatalf("expected %d summary rows, got %d", len(metricdomain.Categories())+1, len(summary.Rows))
	}
	if summary.Rows[0][0] != "participation" || summary.Rows[0][1] != "3" {
		t.Fatalf("unexpected first summary row %v", summary.Rows[0])
	}
	last := summary.Rows[len(summary.Rows)-1]
	if last[0] != "grand total" || last[1] != "10" {
		t.Fatalf("unexpected grand total row %v", last)
	}

	detail := sheets[1]
	if len(detail.Rows) != 1 {
		t.Fatalf("expected 1 detail row, got %d", len(detail.Rows))
	}
	row := detail.Rows[0]
	if row[0] != "2025-06-02" || row[1] != "Alice" || row[5] != "7" {
		t.Fatalf("unexpected detail row %v", row)
	}
}

func TestTradesSheets(t *testing.T) {
	data := reportData{Trades: &tradesData{
		Count:        2,
		TotalCents:   300000,
		AverageCents: 150000,
		CountsByStatus: map[tradedomain.Status]int64{
			tradedomain.StatusPaid:    1,
			tradedomain.StatusPending: 1,
		},
		Details: []tradeDetailRow{{
			Date:         time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
			AmountCents:  125050,
			Status:       "paid",
			DeclarerName: "Bob",
			SourceName:   "N/A",
			Description:  "signage contract",
		}},
	}}

	sheets := buildSheets(data, domain.GenerateRequest{Type: domain.TypeTrades})
	if len(sheets) != 2 {
		t.Fatalf("expected 2 sheets, got %d", len(sheets))
	}

	rows := sheets[0].Rows
	if rows[0][1] != "2" {
		t.Fatalf("trade count row = %v", rows[0])
	}
	if rows[1][1] != "3000.00" || rows[2][1] != "1500.00" {
		t.Fatalf("money rows = %v %v", rows[1], rows[2])
	}
	// Per-status rows follow the fixed summary rows, one per lifecycle state.
	if len(rows) != 3+5 {
		t.Fatalf("expected 8 summary rows, got %d", len(rows))
	}

	detail := sheets[1].Rows[0]
	if detail[5] != "1250.50" || detail[6] != "paid" {
		t.Fatalf("unexpected trade detail row %v", detail)
	}
}

func TestFinancialSheets(t *testing.T) {
	data := reportData{Financial: &financialData{
		RevenueCents:        500000,
		InvoicePaidCount:    2,
		InvoicePaidCents:    450000,
		InvoicePendingCount: 1,
		InvoicePendingCents: 50000,
	}}

	sheets := buildSheets(data, domain.GenerateRequest{Type: domain.TypeFinancial})
	if len(sheets) != 1 {
		t.Fatalf("expected 1 sheet, got %d", len(sheets))
	}
	rows := sheets[0].Rows
	if rows[0][1] != "5000.00" || rows[1][1] != "2" || rows[4][1] != "500.00" {
		t.Fatalf("unexpected financial rows %v", rows)
	}
}

func TestBuildSheetsUnknownType(t *testing.T) {
	if sheets := buildSheets(reportData{}, domain.GenerateRequest{Type: "bogus"}); sheets != nil {
		t.Fatalf("expected nil for unknown type, got %v", sheets)
	}
}

func TestRenderCSVSeparatesSheets(t *testing.T) {
	out, err := renderCSV([]sheet{
		{
			Name:    "Summary",
			Headers: []string{"Measure", "Value"},
			Rows:    [][]string{{"trade count", "2"}},
		},
		{
			Name:    "Trades",
			Headers: []string{"Date", "Amount"},
			Rows:    [][]string{{"2025-06-03", "1250.50"}},
		},
	})
	if err != nil {
		t.Fatalf("renderCSV: %v", err)
	}
	text := string(out)
	want := "Measure,Value\ntrade count,2\n\nDate,Amount\n2025-06-03,1250.50\n"
	if text != want {
		t.Fatalf("renderCSV output:\n%q\nwant:\n%q", text, want)
	}
}

func TestRenderCSVQuotesEmbeddedCommas(t *testing.T) {
	out, err := renderCSV([]sheet{{
		Headers: []string{"Description"},
		Rows:    [][]string{{"printing, large format"}},
	}})
	if err != nil {
		t.Fatalf("renderCSV: %v", err)
	}
	if !strings.Contains(string(out), `"printing, large format"`) {
		t.Fatalf("embedded comma not quoted: %q", out)
	}
}

func TestRenderDispatch(t *testing.T) {
	sheets := []sheet{{
		Name:    "Summary",
		Headers: []string{"Measure", "Value"},
		Rows:    [][]string{{"trade count", "1"}},
	}}

	xlsx, err := render(domain.FormatXLSX, "Trades", sheets)
	if err != nil {
		t.Fatalf("render xlsx: %v", err)
	}
	// xlsx files are zip archives.
	if len(xlsx) < 4 || xlsx[0] != 'P' || xlsx[1] != 'K' {
		t.Fatalf("xlsx output is not a zip archive")
	}

	pdf, err := render(domain.FormatPDF, "Trades", sheets)
	if err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	if !strings.HasPrefix(string(pdf), "%PDF") {
		t.Fatalf("pdf output missing header")
	}

	if _, err := render("docx", "Trades", sheets); err != domain.ErrInvalidFormat {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestClip(t *testing.T) {
	if got := clip("short", 10); got != "short" {
		t.Fatalf("clip short = %q", got)
	}
	long := strings.Repeat("a", 60)
	got := clip(long, 48)
	if len(got) != 48 || !strings.HasSuffix(got, "...") {
		t.Fatalf("clip long = %q", got)
	}
}
