package webhook

import (
	"net/url"
	"strings"

	"github.com/acme/product-importer/internal/apperror"
)

type CreateRequest struct {
	URL     string `json:"url"`
	Event   Event  `json:"event"`
	Enabled *bool  `json:"enabled"`
}

func (r *CreateRequest) Validate() *apperror.AppError {
	r.URL = strings.TrimSpace(r.URL)
	if err := validateURL(r.URL); err != nil {
		return err
	}
	if !r.Event.Valid() {
		return apperror.Newf(apperror.BadRequest, "unknown event type: %s", string(r.Event))
	}
	return nil
}

type UpdateRequest struct {
	ID      int64  `json:"-"`
	URL     string `json:"url"`
	Event   Event  `json:"event"`
	Enabled *bool  `json:"enabled"`
}

func (r *UpdateRequest) Validate() *apperror.AppError {
	if r.ID <= 0 {
		return apperror.New(apperror.BadRequest, "invalid webhook id")
	}
	r.URL = strings.TrimSpace(r.URL)
	if err := validateURL(r.URL); err != nil {
		return err
	}
	if !r.Event.Valid() {
		return apperror.Newf(apperror.BadRequest, "unknown event type: %s", string(r.Event))
	}
	return nil
}

func validateURL(raw string) *apperror.AppError {
	if raw == "" {
		return apperror.New(apperror.BadRequest, "url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperror.New(apperror.BadRequest, "url must be a valid http(s) URL")
	}
	return nil
}
