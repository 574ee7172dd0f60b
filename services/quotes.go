package services

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const maxListedQuotes = 200

var (
	ErrMissingCustomer = errors.New("missing customer")
	ErrQuoteNotFound   = errors.New("quote not found")
)

type QuoteItem struct {
	Name      string `json:"name"`
	Qty       int64  `json:"qty"`
	UnitPrice int64  `json:"unitPrice"`
	ImageURL  string `json:"imageUrl"`
}

func (i QuoteItem) Total() int64 {
	return i.Qty * i.UnitPrice
}

type Quote struct {
	ID        string      `json:"id"`
	Customer  string      `json:"customer"`
	Date      string      `json:"date"`
	Notes     string      `json:"notes"`
	Items     []QuoteItem `json:"items"`
	CreatedAt string      `json:"createdAt"`
	CreatedBy string      `json:"createdBy"`
}

func (q Quote) Total() int64 {
	return lo.SumBy(q.Items, QuoteItem.Total)
}

// QuoteItemInput is an item as submitted by a client; numbers may be
// fractional or missing.
type QuoteItemInput struct {
	Name      string   `json:"name"`
	Qty       *float64 `json:"qty"`
	UnitPrice *float64 `json:"unitPrice"`
	ImageURL  string   `json:"imageUrl"`
}

type QuoteInput struct {
	Customer string           `json:"customer"`
	Date     string           `json:"date"`
	Notes    string           `json:"notes"`
	Items    []QuoteItemInput `json:"items"`
}

// QuoteStore keeps every quote in one JSON file, newest first.
type QuoteStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewQuoteStore(dir string) (*QuoteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create quotes dir: %w", err)
	}
	s := &QuoteStore{path: filepath.Join(dir, "quotes.json"), now: time.Now}
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		if err := s.write([]Quote{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// List returns the newest quotes first.
func (s *QuoteStore) List() ([]Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quotes, err := s.read()
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(quotes, func(a, b Quote) int { return cmp.Compare(b.CreatedAt, a.CreatedAt) })
	if len(quotes) > maxListedQuotes {
		quotes = quotes[:maxListedQuotes]
	}
	return quotes, nil
}

func (s *QuoteStore) Get(id string) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quotes, err := s.read()
	if err != nil {
		return Quote{}, err
	}
	q, ok := lo.Find(quotes, func(q Quote) bool { return q.ID == id })
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrQuoteNotFound, id)
	}
	return q, nil
}

// Create cleans the input and prepends the quote to the store.
func (s *QuoteStore) Create(in QuoteInput, createdBy string) (Quote, error) {
	customer := strings.TrimSpace(in.Customer)
	if customer == "" {
		return Quote{}, ErrMissingCustomer
	}
	if createdBy == "" {
		createdBy = "unknown"
	}
	q := Quote{
		ID:        uuid.NewString(),
		Customer:  customer,
		Date:      strings.TrimSpace(in.Date),
		Notes:     strings.TrimSpace(in.Notes),
		Items:     cleanQuoteItems(in.Items),
		CreatedAt: s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		CreatedBy: createdBy,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	quotes, err := s.read()
	if err != nil {
		return Quote{}, err
	}
	if err := s.write(append([]Quote{q}, quotes...)); err != nil {
		return Quote{}, err
	}
	log.Info().Str("quote_id", q.ID).Str("customer", q.Customer).Int("items", len(q.Items)).Msg("Quote created")
	return q, nil
}

// read tolerates a corrupt file by treating it as empty.
func (s *QuoteStore) read() ([]Quote, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Quote{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read quotes: %w", err)
	}
	var quotes []Quote
	if err := json.Unmarshal(raw, &quotes); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Quotes file unreadable, treating as empty")
		return []Quote{}, nil
	}
	return quotes, nil
}

func (s *QuoteStore) write(quotes []Quote) error {
	raw, err := json.MarshalIndent(quotes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode quotes: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "quotes-*.json")
	if err != nil {
		return fmt.Errorf("failed to write quotes: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write quotes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write quotes: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace quotes file: %w", err)
	}
	return nil
}

func cleanQuoteItems(items []QuoteItemInput) []QuoteItem {
	out := []QuoteItem{}
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		qty := SafeMoney(lo.FromPtrOr(it.Qty, 1))
		if qty == 0 {
			qty = 1
		}
		out = append(out, QuoteItem{
			Name:      name,
			Qty:       qty,
			UnitPrice: SafeMoney(lo.FromPtr(it.UnitPrice)),
			ImageURL:  strings.TrimSpace(it.ImageURL),
		})
	}
	return out
}

// SafeMoney rounds to a non-negative integer; NaN and infinities become 0.
func SafeMoney(x float64) int64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
		return 0
	}
	return int64(math.Round(x))
}

var moneyPrinter = message.NewPrinter(language.MustParse("es-CO"))

// FormatMoney groups thousands the way Colombian peso amounts are written.
func FormatMoney(n int64) string {
	return moneyPrinter.Sprintf("%d", n)
}

var unsafeFileChars = regexp.MustCompile(`(?i)[^a-z0-9]+`)

// PDFFilename is the download name of a quote.
func PDFFilename(q Quote) string {
	return fmt.Sprintf("cotizacion_%s_%s.pdf", unsafeFileChars.ReplaceAllString(q.Customer, "_"), q.ID)
}

// RenderQuotePDF writes a single Letter page: header bar, customer, item
// table, total and notes. Rows that do not fit on the page are left out.
func RenderQuotePDF(w io.Writer, q Quote, today time.Time) error {
	const (
		margin   = 48.0
		pageW    = 612.0
		pageH    = 792.0
		rowH     = 22.0
		bottomY  = pageH - 120
		contentW = pageW - 2*margin
	)

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	y := margin
	pdf.SetFillColor(31, 59, 138)
	pdf.Rect(margin, y, contentW, 34, "F")
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(255, 255, 255)
	pdf.Text(margin+14, y+23, tr("COTIZACIÓN"))
	y += 52

	date := q.Date
	if date == "" {
		date = today.Format("2/1/2006")
	}
	pdf.SetTextColor(38, 38, 43)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Text(margin, y, tr("Fecha: "+date))
	y += 16
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Text(margin, y, tr("Cotizado a: "+q.Customer))
	y += 14

	qtyX, unitX, totalX := pageW-margin-170, pageW-margin-125, pageW-margin-70
	pdf.SetFillColor(240, 242, 250)
	pdf.Rect(margin, y, contentW, 18, "F")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(26, 26, 31)
	pdf.Text(margin+8, y+13, "Producto")
	pdf.Text(qtyX, y+13, "Cant.")
	pdf.Text(unitX, y+13, "Unit.")
	pdf.Text(totalX, y+13, "Total")
	y += 28

	pdf.SetDrawColor(235, 237, 242)
	pdf.SetLineWidth(1)
	for _, it := range q.Items {
		if y > bottomY {
			break
		}
		pdf.Line(margin, y-8, pageW-margin, y-8)
		pdf.SetFont("Helvetica", "", 10)
		pdf.Text(margin+8, y+4, tr(truncateRunes(it.Name, 70)))
		pdf.Text(qtyX+5, y+4, fmt.Sprint(it.Qty))
		pdf.Text(unitX, y+4, FormatMoney(it.UnitPrice))
		pdf.SetFont("Helvetica", "B", 10)
		pdf.Text(totalX, y+4, FormatMoney(it.Total()))
		y += rowH
	}

	y += 10
	pdf.SetFillColor(247, 250, 255)
	pdf.Rect(pageW-margin-220, y, 220, 26, "F")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Text(pageW-margin-210, y+18, "TOTAL")
	pdf.Text(totalX, y+18, FormatMoney(q.Total()))
	y += 40

	if q.Notes != "" {
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(64, 64, 77)
		pdf.SetXY(margin, y)
		pdf.MultiCell(contentW, 12, tr(truncateRunes(q.Notes, 500)), "", "L", false)
	}

	return pdf.Output(w)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
