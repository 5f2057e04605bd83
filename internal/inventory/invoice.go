package inventory

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// InvoiceParser turns an uploaded invoice into line items.
type InvoiceParser interface {
	Parse(data []byte) (*Invoice, error)
}

type Invoice struct {
	Number   string     `json:"invoice_number"`
	Date     string     `json:"invoice_date"`
	Vendor   string     `json:"vendor"`
	Total    float64    `json:"total_amount"`
	Products []LineItem `json:"products"`
}

type LineItem struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
	Confidence float64 `json:"confidence"`
}

var ErrUnreadableInvoice = errors.New("invoice is not readable text")

var invoiceNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)(?:Faktura|FV|Invoice|Rachunek)(?:\s+VAT)?(?:\s+nr\.?|\s+number:?|\s+#)?[\s:]*([\w/-]*\d[\w/-]*)`),
	regexp.MustCompile(`(?im)(?:Nr\s+dokumentu|Document\s+no\.?|Nr\.?)[:\s]*([\w/-]*\d[\w/-]*)`),
}

var invoiceDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)(?:Data|Date)(?:\s+wystawienia)?[\s:]*((?:\d{4}|\d{2})[-./]\d{1,2}[-./](?:\d{4}|\d{1,2}))`),
	regexp.MustCompile(`(?im)(?:Data\s+sprzedaży|Sale\s+date)[:\s]*((?:\d{4}|\d{2})[-./]\d{1,2}[-./](?:\d{4}|\d{1,2}))`),
	regexp.MustCompile(`(?im)(?:Wystawiono|Issued)[:\s]*((?:\d{4}|\d{2})[-./]\d{1,2}[-./](?:\d{4}|\d{1,2}))`),
}

var totalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:Razem|Total|Suma)(?:\s+do\s+zapłaty)?[ \t:]*(\d[\d \t,.]*)`),
	regexp.MustCompile(`(?i)(?:Do\s+zapłaty|Amount\s+due|Grand\s+total|Łącznie)[ \t:]*(\d[\d \t,.]*)`),
}

var (
	vendorPattern  = regexp.MustCompile(`(?is)(?:Sprzedawca|Vendor|Seller|Wystawca)[:\s]+(.*)`)
	vendorStop     = regexp.MustCompile(`(?i)NIP|Nabywca|Buyer`)
	productLine    = regexp.MustCompile(`^([^0-9]+?)\s+(\d+(?:[,.]\d+)?)\s+(\d+(?:[,.]\d+)?)\s+(\d+(?:[,.]\d+)?)`)
	nonNumeric     = regexp.MustCompile(`[^\d,.-]`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// Lines mentioning any of these are summary rows, not products.
var nonProductKeywords = []string{
	"razem", "suma", "total", "vat", "podatek", "dostawa",
	"wartość", "netto", "brutto", "amount", "metoda", "do zapłaty",
}

// TextInvoiceParser reads the text layer of an invoice: header fields by
// pattern and one product per "name quantity unit_price total" line.
type TextInvoiceParser struct{}

var _ InvoiceParser = TextInvoiceParser{}

func (TextInvoiceParser) Parse(data []byte) (*Invoice, error) {
	if !utf8.Valid(data) {
		return nil, ErrUnreadableInvoice
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	inv := &Invoice{Products: []LineItem{}}
	inv.Number = firstMatch(invoiceNumberPatterns, text)
	if d := firstMatch(invoiceDatePatterns, text); d != "" {
		inv.Date = normalizeDate(d)
	}
	inv.Vendor = vendor(text)
	for _, p := range totalPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			inv.Total = parseNumber(m[1])
			break
		}
	}

	best := map[string]LineItem{}
	var order []string
	for _, line := range strings.Split(text, "\n") {
		item, ok := parseProductLine(line)
		if !ok {
			continue
		}
		prev, seen := best[item.Name]
		if !seen {
			order = append(order, item.Name)
		}
		if !seen || item.Confidence > prev.Confidence {
			best[item.Name] = item
		}
	}
	for _, name := range order {
		inv.Products = append(inv.Products, best[name])
	}
	sort.SliceStable(inv.Products, func(i, j int) bool {
		return inv.Products[i].Confidence > inv.Products[j].Confidence
	})
	return inv, nil
}

func parseProductLine(line string) (LineItem, bool) {
	line = strings.TrimSpace(line)
	if len(line) < 5 {
		return LineItem{}, false
	}
	m := productLine.FindStringSubmatch(line)
	if m == nil {
		return LineItem{}, false
	}
	item := LineItem{
		Name:       cleanText(m[1]),
		Quantity:   parseNumber(m[2]),
		UnitPrice:  parseNumber(m[3]),
		TotalPrice: parseNumber(m[4]),
	}
	if item.Quantity <= 0 || item.UnitPrice <= 0 || item.TotalPrice <= 0 {
		return LineItem{}, false
	}
	ratio := item.TotalPrice / (item.Quantity * item.UnitPrice)
	if ratio < 0.98 || ratio > 1.02 {
		return LineItem{}, false
	}
	item.Confidence = confidence(item)
	if !validProductName(item.Name) || item.Confidence <= 0.4 {
		return LineItem{}, false
	}
	return item, true
}

func validProductName(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	if utf8.RuneCountInString(lower) < 3 {
		return false
	}
	for _, k := range nonProductKeywords {
		if strings.Contains(lower, k) {
			return false
		}
	}
	return true
}

func confidence(item LineItem) float64 {
	c := 0.3
	if utf8.RuneCountInString(item.Name) > 5 {
		c += 0.2
	}
	if strings.IndexFunc(item.Name, unicode.IsDigit) >= 0 {
		c += 0.1
	}
	if item.Quantity > 0 && item.UnitPrice > 0 {
		c += 0.2
		expected := item.Quantity * item.UnitPrice
		diff := expected - item.TotalPrice
		if diff < 0 {
			diff = -diff
		}
		if item.TotalPrice > 0 && diff/max(expected, item.TotalPrice) < 0.05 {
			c += 0.2
		}
	}
	return c
}

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return cleanText(m[1])
		}
	}
	return ""
}

// vendor takes the first two non-empty lines after the seller label, cut at
// the tax id or buyer section.
func vendor(text string) string {
	m := vendorPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	block := m[1]
	if loc := vendorStop.FindStringIndex(block); loc != nil {
		block = block[:loc[0]]
	}
	var lines []string
	for _, l := range strings.Split(block, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
		if len(lines) == 2 {
			break
		}
	}
	return cleanText(strings.Join(lines, " "))
}

func normalizeDate(s string) string {
	for _, layout := range []string{"2006-01-02", "2006.01.02", "2006/01/02", "02-01-2006", "02.01.2006", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return s
}

func cleanText(s string) string {
	return whitespaceRuns.ReplaceAllString(strings.TrimSpace(s), " ")
}

// parseNumber accepts 1,234.56, 1.234,56, 1234,56 and 1 234 styles.
func parseNumber(s string) float64 {
	s = nonNumeric.ReplaceAllString(strings.TrimSpace(s), "")
	if s == "" {
		return 0
	}
	comma, dot := strings.Index(s, ","), strings.Index(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma < dot {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
		}
	case comma >= 0:
		parts := strings.Split(s, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	negative := strings.HasPrefix(s, "-")
	s = strings.ReplaceAll(s, "-", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if negative {
		return -v
	}
	return v
}
