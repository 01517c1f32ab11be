package render

import (
	"bytes"
	"html/template"
	"time"

	"github.com/plantmetrics/plant/pkg/money"
)

const invoiceHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Invoice.Number}}</title>
  <style>
    body {
      margin: 0;
      padding: 32px;
      font-family: "Helvetica Neue", Arial, sans-serif;
      color: #111827;
      background: #ffffff;
    }
    .invoice { max-width: 720px; margin: 0 auto; }
    .header {
      display: flex;
      justify-content: space-between;
      border-bottom: 2px solid #15803d;
      padding-bottom: 16px;
      margin-bottom: 24px;
    }
    .meta { text-align: right; font-size: 14px; }
    .label {
      color: #6b7280;
      text-transform: uppercase;
      letter-spacing: 0.04em;
      font-size: 11px;
    }
    table { width: 100%; border-collapse: collapse; font-size: 14px; }
    th, td { padding: 10px; border-bottom: 1px solid #e5e7eb; text-align: left; }
    .totals { margin-top: 12px; display: flex; justify-content: flex-end; font-size: 16px; }
    .totals strong { margin-left: 12px; }
  </style>
</head>
<body>
  <div class="invoice">
    <div class="header">
      <div>
        <div><strong>PLANT Metrics</strong></div>
        <div>{{.Member.FullName}}</div>
        {{if .Member.BusinessName}}<div>{{.Member.BusinessName}}</div>{{end}}
        <div>{{.Member.Email}}</div>
      </div>
      <div class="meta">
        <div class="label">Invoice</div>
        <div><strong>{{.Invoice.Number}}</strong></div>
        <div>Issued: {{formatDate .Invoice.IssuedAt}}</div>
        {{if .Invoice.PaidAt}}<div>Paid: {{formatDatePtr .Invoice.PaidAt}}</div>{{end}}
      </div>
    </div>

    <table>
      <thead>
        <tr>
          <th>Description</th>
          <th>Chapter</th>
          <th>Declared</th>
          <th>Amount</th>
        </tr>
      </thead>
      <tbody>
        <tr>
          <td>{{.Trade.Description}}</td>
          <td>{{if .Trade.ChapterName}}{{.Trade.ChapterName}}{{else}}-{{end}}</td>
          <td>{{formatDate .Trade.DeclaredAt}}</td>
          <td>{{formatMoney .Invoice.AmountCents}}</td>
        </tr>
      </tbody>
    </table>
    <div class="totals">
      <span>Total Due</span>
      <strong>{{formatMoney .Invoice.AmountCents}}</strong>
    </div>
  </div>
</body>
</html>
`

type HTMLRenderer struct {
	tpl *template.Template
}

func NewRenderer() Renderer {
	funcs := template.FuncMap{
		"formatMoney":   money.FormatCents,
		"formatDate":    formatDate,
		"formatDatePtr": formatDatePtr,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceHTMLTemplate)),
	}
}

func (r *HTMLRenderer) RenderHTML(input RenderInput) (string, error) {
	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, input); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatDate(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format("2006-01-02")
}

func formatDatePtr(value *time.Time) string {
	if value == nil {
		return "-"
	}
	return formatDate(*value)
}
