package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"github.com/pauljones0/dealfeed-bot/internal/models"
	"github.com/pauljones0/dealfeed-bot/internal/util"
	"github.com/pauljones0/dealfeed-bot/internal/validator"
)

// DealsOfAmericaSelectors locate deal items on the rendered page.
type DealsOfAmericaSelectors struct {
	Item       string
	TitleLink  string
	Price      string
	Image      string
	CouponCode string
}

func DefaultDealsOfAmericaSelectors() DealsOfAmericaSelectors {
	return DealsOfAmericaSelectors{
		Item:       "div.deal-item-container",
		TitleLink:  "a.deal-title",
		Price:      "span.price",
		Image:      "img",
		CouponCode: "div.coupon-code",
	}
}

// DealsOfAmerica renders the listing page with a headless browser before
// parsing, since the site populates deal items from script. The browser is a
// shared session acquired once per cycle.
type DealsOfAmerica struct {
	url       string
	selectors DealsOfAmericaSelectors
	validate  *validator.DraftValidator

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc

	// render is swapped out in tests to skip the real browser.
	render func(ctx context.Context, url string) (string, error)
}

func NewDealsOfAmerica(url string) *DealsOfAmerica {
	d := &DealsOfAmerica{
		url:       url,
		selectors: DefaultDealsOfAmericaSelectors(),
		validate:  validator.New(),
	}
	d.render = d.renderPage
	return d
}

func (d *DealsOfAmerica) Name() string { return "dealsofamerica" }
func (d *DealsOfAmerica) URL() string  { return d.url }
func (d *DealsOfAmerica) Tag() string  { return "#DealsOfAmerica" }

// Acquire starts the shared headless browser. Idempotent.
func (d *DealsOfAmerica) Acquire(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.browserCtx != nil {
		return nil
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Start the browser process now so Collect fails fast if Chrome is absent.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return fmt.Errorf("starting headless browser: %w", err)
	}

	d.browserCtx = browserCtx
	d.cancelBrowser = cancelBrowser
	d.cancelAlloc = cancelAlloc
	slog.Info("Headless browser session started", "source", d.Name())
	return nil
}

// Release shuts the browser down. Safe without a prior Acquire.
func (d *DealsOfAmerica) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.browserCtx == nil {
		return
	}
	d.cancelBrowser()
	d.cancelAlloc()
	d.browserCtx = nil
	d.cancelBrowser = nil
	d.cancelAlloc = nil
	slog.Info("Headless browser session closed", "source", d.Name())
}

func (d *DealsOfAmerica) renderPage(ctx context.Context, url string) (string, error) {
	d.mu.Lock()
	browserCtx := d.browserCtx
	d.mu.Unlock()
	if browserCtx == nil {
		return "", fmt.Errorf("browser session not acquired")
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 60*time.Second)
	defer cancelTimeout()

	// Propagate the caller's cancellation onto the tab.
	go func() {
		select {
		case <-ctx.Done():
			cancelTab()
		case <-tabCtx.Done():
		}
	}()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(d.selectors.Item, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", url, err)
	}
	return html, nil
}

func (d *DealsOfAmerica) Collect(ctx context.Context) ([]models.Deal, error) {
	html, err := d.render(ctx, d.url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing rendered page: %w", err)
	}
	return d.parse(doc), nil
}

func (d *DealsOfAmerica) parse(doc *goquery.Document) []models.Deal {
	var deals []models.Deal
	doc.Find(d.selectors.Item).Each(func(_ int, item *goquery.Selection) {
		titleLink := item.Find(d.selectors.TitleLink).First()
		deal := models.Deal{
			Title:  util.CleanText(titleLink.Text()),
			Tag:    d.Tag(),
			Source: d.Name(),
		}

		if href, ok := titleLink.Attr("href"); ok {
			if !strings.HasPrefix(href, "http") {
				href = "https://www.dealsofamerica.com" + href
			}
			deal.Link = href
		}

		deal.Price = util.CleanText(item.Find(d.selectors.Price).First().Text())
		deal.Coupon = util.CleanText(item.Find(d.selectors.CouponCode).First().Text())

		if src, ok := item.Find(d.selectors.Image).First().Attr("src"); ok {
			deal.Image = src
		} else {
			deal.Image = models.ImageUnavailable
		}

		if err := d.validate.ValidateDraft(deal); err != nil {
			slog.Debug("Dropping incomplete DealsOfAmerica draft", "title", deal.Title, "error", err)
			return
		}
		deals = append(deals, deal)
	})

	if len(deals) == 0 {
		slog.Warn("No deals found on rendered DealsOfAmerica page", "url", d.url)
	}
	return deals
}
