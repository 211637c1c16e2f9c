package pricing

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"pricewatch/internal/config"
	"pricewatch/internal/services/bookinfo"
	"pricewatch/internal/store"
)

const ellipsis = "…"

// Composer builds notification text for price drops.
type Composer struct {
	currency     string
	urlTemplate  string
	affiliateTag string
	maxLength    int
	printer      *message.Printer
}

// NewComposer reads formatting options from the notifications section.
func NewComposer(cfg config.Notifications) *Composer {
	return &Composer{
		currency:     cfg.CurrencySymbol,
		urlTemplate:  cfg.ProductURLTemplate,
		affiliateTag: strings.TrimSpace(cfg.AffiliateTag),
		maxLength:    cfg.MaxLength,
		printer:      message.NewPrinter(language.BritishEnglish),
	}
}

// ProductURL returns the public product link for id.
func (c *Composer) ProductURL(id string) string {
	link := fmt.Sprintf(c.urlTemplate, url.PathEscape(id))
	if c.affiliateTag == "" {
		return link
	}
	parsed, err := url.Parse(link)
	if err != nil {
		return link
	}
	query := parsed.Query()
	query.Set("tag", c.affiliateTag)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// Plain composes the message used when no enrichment data is available.
func (c *Composer) Plain(item *store.Item, price Price) string {
	return c.fit(item.Title, func(title string) string {
		return fmt.Sprintf("%s is now %s%s 👀\n\nBuy now at 👉 %s",
			title, c.currency, price, c.ProductURL(item.ID))
	})
}

// Rich composes the message including author and reader statistics.
func (c *Composer) Rich(item *store.Item, price Price, book *bookinfo.Book) string {
	if book == nil {
		return c.Plain(item, price)
	}
	stats := c.readerStats(book)
	return c.fit(item.Title, func(title string) string {
		return fmt.Sprintf("%s by %s is now %s%s 👀\n\n%s\n\nBuy now at 👉 %s",
			title, book.Author, c.currency, price, stats, c.ProductURL(item.ID))
	})
}

func (c *Composer) readerStats(book *bookinfo.Book) string {
	var segments []string
	if rating := strings.TrimSpace(book.Rating); rating != "" {
		segments = append(segments, "⭐️ "+rating)
	}
	if book.ToRead != nil {
		segments = append(segments, c.printer.Sprintf("📖 %d want to read", *book.ToRead))
	}
	if book.CurrentlyReading != nil {
		segments = append(segments, c.printer.Sprintf("👓 %d reading now", *book.CurrentlyReading))
	}
	line := "📚 #Goodreads"
	if len(segments) > 0 {
		line += " " + strings.Join(segments, " · ")
	}
	return line
}

// fit renders the message and, when it exceeds the maximum length, shortens
// the title so the rest of the message survives intact. When shortening the
// title cannot absorb the overflow, the whole text is cut instead.
func (c *Composer) fit(title string, render func(title string) string) string {
	title = strings.TrimSpace(title)
	text := render(title)
	if c.maxLength <= 0 {
		return text
	}
	total := utf8.RuneCountInString(text)
	if total <= c.maxLength {
		return text
	}
	titleRunes := []rune(title)
	marker := utf8.RuneCountInString(ellipsis)
	keep := len(titleRunes) - (total - c.maxLength) - marker
	if keep >= 0 {
		return render(strings.TrimSpace(string(titleRunes[:keep])) + ellipsis)
	}
	cut := max(c.maxLength-marker, 0)
	return string([]rune(text)[:cut]) + ellipsis
}
