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

// SlickdealsSelectors locate deal cards on the Slickdeals front page.
type SlickdealsSelectors struct {
	Card          string
	TitleLink     string
	Price         string
	OriginalPrice string
	Image         string
}

func DefaultSlickdealsSelectors() SlickdealsSelectors {
	return SlickdealsSelectors{
		Card:          "div.dealCard__content",
		TitleLink:     "a.dealCard__title",
		Price:         "span.dealCard__price",
		OriginalPrice: "span.dealCard__originalPrice",
		Image:         "img.dealCard__image",
	}
}

type Slickdeals struct {
	url       string
	client    *http.Client
	selectors SlickdealsSelectors
	validate  *validator.DraftValidator
}

func NewSlickdeals(url string) *Slickdeals {
	return &Slickdeals{
		url:       url,
		client:    newHTTPClient(),
		selectors: DefaultSlickdealsSelectors(),
		validate:  validator.New(),
	}
}

func (s *Slickdeals) Name() string { return "slickdeals" }
func (s *Slickdeals) URL() string  { return s.url }
func (s *Slickdeals) Tag() string  { return "#Slickdeals" }

func (s *Slickdeals) Collect(ctx context.Context) ([]models.Deal, error) {
	doc, err := fetchDocument(ctx, s.client, s.url)
	if err != nil {
		return nil, err
	}
	return s.parse(doc), nil
}

func (s *Slickdeals) parse(doc *goquery.Document) []models.Deal {
	var deals []models.Deal
	doc.Find(s.selectors.Card).Each(func(_ int, card *goquery.Selection) {
		titleLink := card.Find(s.selectors.TitleLink).First()
		deal := models.Deal{
			Title:  util.CleanText(titleLink.Text()),
			Tag:    s.Tag(),
			Source: s.Name(),
		}

		if href, ok := titleLink.Attr("href"); ok {
			if strings.HasPrefix(href, "/") {
				href = "https://slickdeals.net" + href
			}
			deal.Link = href
		}

		deal.Price = util.CleanText(card.Find(s.selectors.Price).First().Text())
		deal.OriginalPrice = util.CleanText(card.Find(s.selectors.OriginalPrice).First().Text())

		if src, ok := card.Find(s.selectors.Image).First().Attr("src"); ok {
			deal.Image = src
		} else {
			deal.Image = models.ImageUnavailable
		}

		if err := s.validate.ValidateDraft(deal); err != nil {
			slog.Debug("Dropping incomplete Slickdeals draft", "title", deal.Title, "error", err)
			return
		}
		deals = append(deals, deal)
	})

	if len(deals) == 0 {
		slog.Warn("No deals found on Slickdeals page", "url", s.url)
	}
	return deals
}
