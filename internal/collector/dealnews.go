package collector

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/dealfeed-bot/internal/models"
	"github.com/pauljones0/dealfeed-bot/internal/util"
	"github.com/pauljones0/dealfeed-bot/internal/validator"
)

// DealNewsSelectors locate offer sections on the DealNews front page.
type DealNewsSelectors struct {
	Section string
	Title   string
	Price   string
	Image   string
	Link    string
}

func DefaultDealNewsSelectors() DealNewsSelectors {
	return DealNewsSelectors{
		Section: "div.flex-cell.flex-cell-size-1of1",
		Title:   "div.title.limit-height.limit-height-large-2.limit-height-small-2",
		Price:   "div.callout.limit-height.limit-height-large-1.limit-height-small-1",
		Image:   "img.native-lazy-img",
		Link:    "a.attractor",
	}
}

type DealNews struct {
	url       string
	client    *http.Client
	selectors DealNewsSelectors
	validate  *validator.DraftValidator
}

func NewDealNews(url string) *DealNews {
	return &DealNews{
		url:       url,
		client:    newHTTPClient(),
		selectors: DefaultDealNewsSelectors(),
		validate:  validator.New(),
	}
}

func (d *DealNews) Name() string { return "dealnews" }
func (d *DealNews) URL() string  { return d.url }
func (d *DealNews) Tag() string  { return "#DealNews" }

func (d *DealNews) Collect(ctx context.Context) ([]models.Deal, error) {
	doc, err := fetchDocument(ctx, d.client, d.url)
	if err != nil {
		return nil, err
	}
	return d.parse(doc), nil
}

func (d *DealNews) parse(doc *goquery.Document) []models.Deal {
	var deals []models.Deal
	doc.Find(d.selectors.Section).Each(func(_ int, section *goquery.Selection) {
		deal := models.Deal{
			Title:  util.CleanText(section.Find(d.selectors.Title).First().Text()),
			Tag:    d.Tag(),
			Source: d.Name(),
		}

		price := util.CleanText(section.Find(d.selectors.Price).First().Text())
		if strings.Contains(strings.ToLower(price), "free") {
			price = "Free"
		}
		deal.Price = price

		if href, ok := section.Find(d.selectors.Link).First().Attr("href"); ok {
			deal.Link = href
		}

		if src, ok := section.Find(d.selectors.Image).First().Attr("src"); ok {
			deal.Image = src
		} else {
			deal.Image = models.ImageUnavailable
		}

		if err := d.validate.ValidateDraft(deal); err != nil {
			slog.Debug("Dropping incomplete DealNews draft", "title", deal.Title, "error", err)
			return
		}
		deals = append(deals, deal)
	})

	if len(deals) == 0 {
		slog.Warn("No deals found on DealNews page", "url", d.url)
	}
	return deals
}
