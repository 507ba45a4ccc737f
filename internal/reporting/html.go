package reporting

import (
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/therealtplum/watch-heat/internal/domain"
)

// ErrEmptyReport means the report holds no screen rows to render.
var ErrEmptyReport = errors.New("no rows to render")

// RenderHTML renders the report as a self-contained page: run stats up top,
// then the ranked table with client-side search, hot-only filtering, and
// column sorting.
func RenderHTML(r *Report) (string, error) {
	if len(r.Rows) == 0 {
		return "", ErrEmptyReport
	}

	page := htmlPage{
		RunDate:    r.RunDate.Format("2006-01-02"),
		TotalCount: r.Summary.TotalWatches,
		HotCount:   r.Summary.HotWatches,
		AvgHeat:    fmt.Sprintf("%.2f", r.Summary.AvgHeat),
		MaxHeat:    fmt.Sprintf("%.2f", r.Summary.MaxHeat),
		FeeNote:    feeLine(r.Fees),
		Rows:       make([]htmlRow, 0, len(r.Rows)),
	}
	for _, row := range r.Rows {
		page.Rows = append(page.Rows, viewRow(row))
	}

	var sb strings.Builder
	if err := screenTemplate.Execute(&sb, page); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// htmlPage is the full template context.
type htmlPage struct {
	RunDate    string
	TotalCount int
	HotCount   int
	AvgHeat    string
	MaxHeat    string
	FeeNote    string
	Rows       []htmlRow
}

// htmlRow is the template view of one screen row, cells pre-formatted.
type htmlRow struct {
	Hot           bool
	Brand         string
	Reference     string
	Name          string
	Price         string
	Pct7          htmlCell
	Pct14         htmlCell
	Pct30         htmlCell
	Z90           string
	DOMDelta14    htmlCell
	SupplyDelta14 htmlCell
	EbayMom30     string
	Heat          string
	HeatClass     string
	BidLow        string
	BidHigh       string
}

// htmlCell is one pre-formatted table cell with its color class.
type htmlCell struct {
	Text  string
	Class string
}

// viewRow pre-formats one screen row for the template.
func viewRow(row domain.PricedRow) htmlRow {
	return htmlRow{
		Hot:           row.IsHot,
		Brand:         row.Brand,
		Reference:     row.Reference,
		Name:          row.Nickname,
		Price:         moneyCell(row.MedianPrice),
		Pct7:          signedCellClass(row.Pct7, 1),
		Pct14:         signedCellClass(row.Pct14, 1),
		Pct30:         signedCellClass(row.Pct30, 1),
		Z90:           signedCell(row.Z90, 2),
		DOMDelta14:    signedCellClass(row.DOMDelta14, 1),
		SupplyDelta14: signedCellClass(row.SupplyDelta14, 1),
		EbayMom30:     signedCell(row.EbayMom30, 2),
		Heat:          fmt.Sprintf("%+.2f", row.Heat),
		HeatClass:     heatClass(row.Heat),
		BidLow:        moneyCell(row.MaxBidMarginLow),
		BidHigh:       moneyCell(row.MaxBidMarginHigh),
	}
}

// signedCellClass pairs a signed cell with its color class.
func signedCellClass(v *float64, digits int) htmlCell {
	cell := htmlCell{Text: signedCell(v, digits)}
	switch {
	case v == nil:
	case *v > 0:
		cell.Class = "positive"
	case *v < 0:
		cell.Class = "negative"
	}
	return cell
}

// heatClass maps a heat score to its color band.
func heatClass(heat float64) string {
	switch {
	case heat >= 0.75:
		return "heat-high"
	case heat >= 0.5:
		return "heat-medium"
	case heat > 0:
		return "heat-low"
	default:
		return ""
	}
}

var screenTemplate = template.Must(template.New("screen").Parse(screenHTML))

const screenHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>Watch Heat Report - {{.RunDate}}</title>
  <style>
    * { box-sizing: border-box; }
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
      margin: 0;
      padding: 20px;
      background: #f5f5f5;
      color: #333;
      line-height: 1.6;
    }
    .container {
      max-width: 1800px;
      margin: 0 auto;
      background: white;
      border-radius: 8px;
      box-shadow: 0 2px 8px rgba(0,0,0,0.1);
      padding: 24px;
    }
    header {
      border-bottom: 2px solid #eee;
      padding-bottom: 16px;
      margin-bottom: 24px;
    }
    h1 {
      margin: 0 0 8px 0;
      color: #1a1a1a;
      font-size: 28px;
    }
    .meta {
      color: #666;
      font-size: 14px;
      margin-bottom: 16px;
    }
    .stats {
      display: flex;
      gap: 24px;
      flex-wrap: wrap;
      margin-bottom: 24px;
      padding: 16px;
      background: #f9f9f9;
      border-radius: 6px;
    }
    .stat {
      flex: 1;
      min-width: 150px;
    }
    .stat-label {
      font-size: 12px;
      color: #666;
      text-transform: uppercase;
      letter-spacing: 0.5px;
      margin-bottom: 4px;
    }
    .stat-value {
      font-size: 24px;
      font-weight: 600;
      color: #1a1a1a;
    }
    .stat-value.hot { color: #d97706; }
    .controls {
      margin-bottom: 16px;
      display: flex;
      gap: 12px;
      flex-wrap: wrap;
      align-items: center;
    }
    .filter-input {
      padding: 8px 12px;
      border: 1px solid #ddd;
      border-radius: 4px;
      font-size: 14px;
      flex: 1;
      min-width: 200px;
    }
    .filter-toggle {
      padding: 8px 16px;
      border: 1px solid #ddd;
      border-radius: 4px;
      background: white;
      cursor: pointer;
      font-size: 14px;
      transition: all 0.2s;
    }
    .filter-toggle:hover {
      background: #f5f5f5;
    }
    .filter-toggle.active {
      background: #d97706;
      color: white;
      border-color: #d97706;
    }
    .table-wrapper {
      overflow-x: auto;
      margin-top: 16px;
    }
    table {
      border-collapse: collapse;
      width: 100%;
      font-size: 13px;
      min-width: 1200px;
    }
    th {
      background: #f8f8f8;
      text-align: left;
      padding: 12px 8px;
      font-weight: 600;
      color: #555;
      border-bottom: 2px solid #ddd;
      position: sticky;
      top: 0;
      z-index: 10;
      cursor: pointer;
      user-select: none;
      white-space: nowrap;
    }
    th:hover {
      background: #f0f0f0;
    }
    th.sort-asc::after {
      content: " ▲";
      font-size: 10px;
      opacity: 0.6;
    }
    th.sort-desc::after {
      content: " ▼";
      font-size: 10px;
      opacity: 0.6;
    }
    td {
      padding: 10px 8px;
      border-bottom: 1px solid #eee;
      white-space: nowrap;
    }
    tbody tr {
      transition: background 0.15s;
    }
    tbody tr:hover {
      background: #f9f9f9;
    }
    tbody tr.hot {
      background: #fff8e6;
    }
    tbody tr.hot:hover {
      background: #fff5d6;
    }
    .number {
      text-align: right;
      font-variant-numeric: tabular-nums;
    }
    .positive { color: #059669; font-weight: 500; }
    .negative { color: #dc2626; font-weight: 500; }
    .heat-high { background: #fef3c7; font-weight: 600; }
    .heat-medium { background: #fde68a; }
    .heat-low { background: #fef3c7; }
    .badge {
      display: inline-block;
      padding: 2px 8px;
      border-radius: 12px;
      font-size: 11px;
      font-weight: 600;
      text-transform: uppercase;
      letter-spacing: 0.5px;
    }
    .badge-hot {
      background: #fef3c7;
      color: #92400e;
    }
    .footnote {
      margin-top: 16px;
      color: #666;
      font-size: 12px;
    }
    .empty {
      text-align: center;
      padding: 40px;
      color: #999;
    }
    @media (max-width: 768px) {
      .container { padding: 16px; }
      .stats { flex-direction: column; }
      .controls { flex-direction: column; }
      .filter-input { width: 100%; }
    }
  </style>
</head>
<body>
  <div class="container">
    <header>
      <h1>🔥 Watch Heat Report</h1>
      <div class="meta">Run Date: {{.RunDate}} | Total Watches: {{.TotalCount}} | Hot Watches: {{.HotCount}}</div>
    </header>

    <div class="stats">
      <div class="stat">
        <div class="stat-label">Total Watches</div>
        <div class="stat-value">{{.TotalCount}}</div>
      </div>
      <div class="stat">
        <div class="stat-label">Hot Watches</div>
        <div class="stat-value hot">{{.HotCount}}</div>
      </div>
      <div class="stat">
        <div class="stat-label">Avg Heat Score</div>
        <div class="stat-value">{{.AvgHeat}}</div>
      </div>
      <div class="stat">
        <div class="stat-label">Max Heat Score</div>
        <div class="stat-value">{{.MaxHeat}}</div>
      </div>
    </div>

    <div class="controls">
      <input type="text" class="filter-input" id="searchInput" placeholder="Search by brand, reference, or name...">
      <button class="filter-toggle active" id="showAll">All</button>
      <button class="filter-toggle" id="showHot">Hot Only</button>
    </div>

    <div class="table-wrapper">
      <table id="watchTable">
        <thead>
          <tr>
            <th data-sort="brand">Brand</th>
            <th data-sort="reference">Reference</th>
            <th data-sort="display_name">Name</th>
            <th data-sort="median_price" class="number">Price</th>
            <th data-sort="pct_7" class="number">Δ7d%</th>
            <th data-sort="pct_14" class="number">Δ14d%</th>
            <th data-sort="pct_30" class="number">Δ30d%</th>
            <th data-sort="z90" class="number">Z90</th>
            <th data-sort="dom_delta_14" class="number">DOM Δ14%</th>
            <th data-sort="supply_delta_14" class="number">Supply Δ14%</th>
            <th data-sort="ebay_mom_30" class="number">eBay Mom30</th>
            <th data-sort="heat" class="number">Heat</th>
            <th data-sort="max_bid_for_8pct" class="number">Max Bid (8%)</th>
            <th data-sort="max_bid_for_10pct" class="number">Max Bid (10%)</th>
          </tr>
        </thead>
        <tbody>
        {{range .Rows}}
          <tr class="{{if .Hot}}hot{{end}}" data-hot="{{if .Hot}}true{{else}}false{{end}}">
            <td>{{.Brand}}</td>
            <td><code>{{.Reference}}</code></td>
            <td>{{.Name}}</td>
            <td class="number">{{.Price}}</td>
            <td class="number {{.Pct7.Class}}">{{.Pct7.Text}}</td>
            <td class="number {{.Pct14.Class}}">{{.Pct14.Text}}</td>
            <td class="number {{.Pct30.Class}}">{{.Pct30.Text}}</td>
            <td class="number">{{.Z90}}</td>
            <td class="number {{.DOMDelta14.Class}}">{{.DOMDelta14.Text}}</td>
            <td class="number {{.SupplyDelta14.Class}}">{{.SupplyDelta14.Text}}</td>
            <td class="number">{{.EbayMom30}}</td>
            <td class="number {{.HeatClass}}">{{.Heat}}{{if .Hot}} <span class="badge badge-hot">HOT</span>{{end}}</td>
            <td class="number">{{.BidLow}}</td>
            <td class="number">{{.BidHigh}}</td>
          </tr>
        {{end}}
        </tbody>
      </table>
    </div>

    <div class="footnote">{{.FeeNote}}</div>
  </div>

  <script>
    const table = document.getElementById('watchTable');
    const tbody = table.querySelector('tbody');
    const searchInput = document.getElementById('searchInput');
    const showAll = document.getElementById('showAll');
    const showHot = document.getElementById('showHot');
    let currentSort = { column: null, direction: 'asc' };
    let allRows = Array.from(tbody.querySelectorAll('tr'));
    let filteredRows = allRows;

    // Search functionality
    function filterRows() {
      const query = searchInput.value.toLowerCase();
      const showHotOnly = showHot.classList.contains('active');

      filteredRows = allRows.filter(row => {
        const text = row.textContent.toLowerCase();
        const matchesSearch = !query || text.includes(query);
        const matchesFilter = !showHotOnly || row.dataset.hot === 'true';
        return matchesSearch && matchesFilter;
      });

      tbody.innerHTML = '';
      filteredRows.forEach(row => tbody.appendChild(row));
    }

    searchInput.addEventListener('input', filterRows);

    showAll.addEventListener('click', () => {
      showAll.classList.add('active');
      showHot.classList.remove('active');
      filterRows();
    });

    showHot.addEventListener('click', () => {
      showHot.classList.add('active');
      showAll.classList.remove('active');
      filterRows();
    });

    // Sorting functionality
    function parseValue(cell) {
      const text = cell.textContent.trim();
      if (text === '—' || text === '') return null;
      // Remove currency symbols and commas
      const cleaned = text.replace(/[$,]/g, '').replace(/[^\d.\-+]/g, '');
      const num = parseFloat(cleaned);
      return isNaN(num) ? text : num;
    }

    function sortTable(columnIndex) {
      const header = table.querySelectorAll('th')[columnIndex];
      const isNumeric = header.classList.contains('number');

      // Remove sort indicators
      table.querySelectorAll('th').forEach(th => {
        th.classList.remove('sort-asc', 'sort-desc');
      });

      // Determine sort direction
      if (currentSort.column === columnIndex) {
        currentSort.direction = currentSort.direction === 'asc' ? 'desc' : 'asc';
      } else {
        currentSort.column = columnIndex;
        currentSort.direction = 'asc';
      }

      // Sort rows
      const rows = Array.from(tbody.querySelectorAll('tr'));
      rows.sort((a, b) => {
        const aVal = parseValue(a.cells[columnIndex]);
        const bVal = parseValue(b.cells[columnIndex]);

        if (aVal === null && bVal === null) return 0;
        if (aVal === null) return 1;
        if (bVal === null) return -1;

        let comparison = 0;
        if (isNumeric) {
          comparison = aVal - bVal;
        } else {
          comparison = String(aVal).localeCompare(String(bVal));
        }

        return currentSort.direction === 'asc' ? comparison : -comparison;
      });

      // Re-append sorted rows
      rows.forEach(row => tbody.appendChild(row));

      // Add sort indicator
      header.classList.add(currentSort.direction === 'asc' ? 'sort-asc' : 'sort-desc');
    }

    // Add click handlers to headers
    table.querySelectorAll('th').forEach((th, index) => {
      th.addEventListener('click', () => sortTable(index));
    });
  </script>
</body>
</html>
`
