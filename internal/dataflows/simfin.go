package dataflows

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Statement identifies one of the three SimFin statement dumps.
type Statement struct {
	dir         string
	file        string
	title       string
	description string
}

var (
	BalanceSheet = Statement{
		dir: "balance_sheet", file: "us-balance", title: "balance sheet",
		description: "This includes metadata like reporting dates and currency, share details, and a comprehensive breakdown of assets, liabilities, and equity. " +
			"Assets are grouped as current (liquid items like cash and receivables) and noncurrent (long-term investments and property). " +
			"Liabilities are split between short-term obligations and long-term debts, while equity reflects shareholder funds such as paid-in capital and retained earnings. " +
			"Together, these components ensure that total assets equal the sum of liabilities and equity.",
	}
	CashFlow = Statement{
		dir: "cash_flow", file: "us-cashflow", title: "cash flow statement",
		description: "This includes metadata like reporting dates and currency, share details, and a breakdown of cash movements. " +
			"Operating activities show cash generated from core business operations, including net income adjustments for non-cash items and working capital changes. " +
			"Investing activities cover asset acquisitions/disposals and investments. " +
			"Financing activities include debt transactions, equity issuances/repurchases, and dividend payments. " +
			"The net change in cash represents the overall increase or decrease in the company's cash position during the reporting period.",
	}
	IncomeStatement = Statement{
		dir: "income_statements", file: "us-income", title: "income statement",
		description: "This includes metadata like reporting dates and currency, share details, and a comprehensive breakdown of the company's financial performance. " +
			"Starting with Revenue, it shows Cost of Revenue and resulting Gross Profit. " +
			"Operating Expenses are detailed, including SG&A, R&D, and Depreciation. " +
			"The statement then shows Operating Income, followed by non-operating items and Interest Expense, leading to Pretax Income. " +
			"After accounting for Income Tax and any Extraordinary items, it concludes with Net Income, representing the company's bottom-line profit or loss for the period.",
	}
)

// SimFinReader reads the semicolon separated SimFin bulk downloads.
type SimFinReader struct {
	root string
}

func NewSimFinReader(dataDir string) *SimFinReader {
	return &SimFinReader{root: filepath.Join(dataDir, "fundamental_data", "simfin_data_all")}
}

// Latest returns the most recent statement for ticker published on or before
// currDate. freq is "annual" or "quarterly". Missing data returns "".
func (r *SimFinReader) Latest(st Statement, ticker, freq, currDate string) (string, error) {
	if freq != "annual" && freq != "quarterly" {
		return "", fmt.Errorf("invalid frequency %q: want annual or quarterly", freq)
	}
	curr, err := time.Parse(dateLayout, currDate)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", currDate, err)
	}

	path := filepath.Join(r.root, st.dir, "companies", "us", fmt.Sprintf("%s-%s.csv", st.file, freq))
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return "", fmt.Errorf("read %s header: %w", path, err)
	}
	tickerCol, publishCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case "Ticker":
			tickerCol = i
		case "Publish Date":
			publishCol = i
		}
	}
	if tickerCol < 0 || publishCol < 0 {
		return "", fmt.Errorf("%s: missing Ticker or Publish Date column", path)
	}

	ticker = NormalizeSymbol(ticker)
	var best []string
	var bestDate time.Time
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		if len(rec) <= publishCol || rec[tickerCol] != ticker {
			continue
		}
		raw := rec[publishCol]
		if len(raw) > 10 {
			raw = raw[:10]
		}
		published, err := time.Parse(dateLayout, raw)
		if err != nil || published.After(curr) {
			continue
		}
		if best == nil || published.After(bestDate) {
			best, bestDate = rec, published
		}
	}
	if best == nil {
		return "", nil
	}

	width := 0
	for _, h := range header {
		if len(h) > width {
			width = len(h)
		}
	}
	var sb strings.Builder
	for i, h := range header {
		if h == "SimFinId" || i >= len(best) {
			continue
		}
		fmt.Fprintf(&sb, "%-*s %s\n", width, h, best[i])
	}
	return fmt.Sprintf("## %s %s for %s released on %s: \n%s\n%s",
		freq, st.title, ticker, bestDate.Format(dateLayout), sb.String(), st.description), nil
}
