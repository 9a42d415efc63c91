package api

import (
	"errors"
	"net/http"

	"github.com/rewired-gh/wealthstack/internal/models"
	"github.com/rewired-gh/wealthstack/internal/series"
)

type modeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=raw nominal normalized"`
}

func (m *modeRequest) Bind(r *http.Request) error { return nil }

type selectRequest struct {
	Year     int          `json:"year" validate:"required,min=1000,max=9999"`
	Category string       `json:"category" validate:"required,oneof=Technology Other"`
	Span     *models.Span `json:"span,omitempty"`
}

func (s *selectRequest) Bind(r *http.Request) error {
	if s.Span != nil && s.Span.Y1 < s.Span.Y0 {
		return errors.New("span: y1 must not be less than y0")
	}
	return nil
}

func (s *selectRequest) key() models.GroupKey {
	return models.GroupKey{Year: s.Year, Category: models.Category(s.Category)}
}

type marketRequest struct {
	Ticker string `json:"ticker" validate:"required,max=64"`
	Metric string `json:"metric"`
}

// Bind defaults the metric to market cap.
func (m *marketRequest) Bind(r *http.Request) error {
	if m.Metric == "" {
		m.Metric = string(series.MetricMarketCap)
		return nil
	}
	_, err := series.ParseMetric(m.Metric)
	return err
}

type pieRequest struct {
	Year int `json:"year" validate:"required,min=1000,max=9999"`
}

func (p *pieRequest) Bind(r *http.Request) error { return nil }
