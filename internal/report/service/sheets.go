package service

import (
	"fmt"
	"strconv"
	"time"

	metricdomain "github.com/plantmetrics/plant/internal/metric/domain"
	"github.com/plantmetrics/plant/internal/report/domain"
	tradedomain "github.com/plantmetrics/plant/internal/trade/domain"
	"github.com/plantmetrics/plant/pkg/money"
)

const dateLayout = "2006-01-02"

// sheet is one named table of a report, shared by every output format.
type sheet struct {
	Name    string
	Headers []string
	Rows    [][]string
}

func buildSheets(data reportData, req domain.GenerateRequest) []sheet {
	switch req.Type {
	case domain.TypeMetrics:
		return metricsSheets(data.Metrics)
	case domain.TypeTrades:
		return tradesSheets(data.Trades)
	case domain.TypeFinancial:
		return financialSheets(data.Financial)
	case domain.TypeMembers:
		return membersSheets(data.Members)
	case domain.TypeChapters:
		return chaptersSheets(data.Chapters)
	}
	return nil
}

func metricsSheets(data *metricsData) []sheet {
	summary := sheet{
		Name:    "Summary",
		Headers: []string{"Category", "Total"},
	}
	for _, category := range metricdomain.Categories() {
		summary.Rows = append(summary.Rows, []string{
			string(category),
			strconv.FormatInt(data.Totals[category], 10),
		})
	}
	summary.Rows = append(summary.Rows, []string{
		"grand total",
		strconv.FormatInt(data.GrandTotal, 10),
	})

	detail := sheet{
		Name:    "Entries",
		Headers: []string{"Date", "Member", "Business", "Chapter", "Category", "Value"},
	}
	for _, row := range data.Details {
		detail.Rows = append(detail.Rows, []string{
			row.Date.Format(dateLayout),
			row.MemberName,
			row.BusinessName,
			row.ChapterName,
			row.Category,
			strconv.FormatInt(row.Value, 10),
		})
	}
	return []sheet{summary, detail}
}

func tradesSheets(data *tradesData) []sheet {
	summary := sheet{
		Name:    "Summary",
		Headers: []string{"Measure", "Value"},
		Rows: [][]string{
			{"trade count", strconv.FormatInt(data.Count, 10)},
			{"total value", money.FormatCents(data.TotalCents)},
			{"average value", money.FormatCents(data.AverageCents)},
		},
	}
	for _, status := range []tradedomain.Status{
		tradedomain.StatusPending,
		tradedomain.StatusInvoiced,
		tradedomain.StatusPaid,
		tradedomain.StatusFailed,
		tradedomain.StatusCancelled,
	} {
		summary.Rows = append(summary.Rows, []string{
			fmt.Sprintf("%s trades", status),
			strconv.FormatInt(data.CountsByStatus[status], 10),
		})
	}

	detail := sheet{
		Name:    "Trades",
		Headers: []string{"Date", "Declarer", "Source", "Beneficiary", "Chapter", "Amount", "Status", "Description"},
	}
	for _, row := range data.Details {
		detail.Rows = append(detail.Rows, []string{
			row.Date.Format(dateLayout),
			row.DeclarerName,
			row.SourceName,
			row.BeneficiaryName,
			row.ChapterName,
			money.FormatCents(row.AmountCents),
			row.Status,
			row.Description,
		})
	}
	return []sheet{summary, detail}
}

func financialSheets(data *financialData) []sheet {
	return []sheet{{
		Name:    "Summary",
		Headers: []string{"Measure", "Value"},
		Rows: [][]string{
			{"trade revenue", money.FormatCents(data.RevenueCents)},
			{"invoices paid", strconv.FormatInt(data.InvoicePaidCount, 10)},
			{"invoices paid amount", money.FormatCents(data.InvoicePaidCents)},
			{"invoices pending", strconv.FormatInt(data.InvoicePendingCount, 10)},
			{"invoices pending amount", money.FormatCents(data.InvoicePendingCents)},
		},
	}}
}

func membersSheets(data *membersData) []sheet {
	summary := sheet{
		Name:    "Summary",
		Headers: []string{"Role", "Count"},
	}
	for _, role := range []string{"member", "chapter_leader", "administrator"} {
		summary.Rows = append(summary.Rows, []string{
			role,
			strconv.FormatInt(data.CountsByRole[role], 10),
		})
	}

	directory := sheet{
		Name:    "Directory",
		Headers: []string{"Name", "Business", "Email", "Role", "Chapter", "Joined"},
	}
	for _, row := range data.Directory {
		directory.Rows = append(directory.Rows, []string{
			row.FullName,
			row.BusinessName,
			row.Email,
			row.Role,
			row.ChapterName,
			row.JoinedAt.Format(dateLayout),
		})
	}
	return []sheet{summary, directory}
}

func chaptersSheets(data *chaptersData) []sheet {
	overview := sheet{
		Name:    "Chapters",
		Headers: []string{"Chapter", "Leader", "Members", "Created"},
	}
	for _, row := range data.Rows {
		overview.Rows = append(overview.Rows, []string{
			row.Name,
			row.LeaderName,
			strconv.FormatInt(row.MemberCount, 10),
			row.CreatedAt.Format(dateLayout),
		})
	}
	return []sheet{overview}
}

func fileName(reportType domain.Type, format domain.Format, start, end time.Time) string {
	return fmt.Sprintf("%s_Report_%s_to_%s.%s",
		reportType.Title(),
		start.Format(dateLayout),
		end.Format(dateLayout),
		format,
	)
}

func periodLabel(start, end time.Time) string {
	return fmt.Sprintf("%s to %s", start.Format(dateLayout), end.Format(dateLayout))
}
