package render

import "cryptodash/backend-go/internal/models"

type IndexPage struct {
	Title    string
	Now      string
	Error    string
	Meta     models.Meta
	Convert  string
	Listings []models.Listing
	Global   *models.GlobalMetrics
}

type NewsPage struct {
	Title string
	Now   string
	Error string
	Meta  models.Meta
	Epoch string
	Items []models.NewsItem
}
