package vschallan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/invento-software-limited/Smart-Vat-Challan/config"
	"github.com/invento-software-limited/Smart-Vat-Challan/models"
)

const authenticatePath = "/integration/vendor_authenticate"

type Token struct {
	AccessToken string `json:"access_token"`
	ExpiryDate  string `json:"expiry_date"`
	CompanyID   string `json:"company_id"`
}

// expiryLayouts are accepted from the authority and stored as
// models.ExpiryDateLayout.
var expiryLayouts = []string{
	models.ExpiryDateLayout,
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// GetAccessToken returns the stored token while its expiry is in the future,
// otherwise authenticates and persists the new token before returning it.
// forceRefresh skips the expiry check.
func (s *Service) GetAccessToken(ctx context.Context, forceRefresh bool) (Token, error) {
	const op = "GetAccessToken"
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return Token{}, err
	}

	if !forceRefresh && cfg.AccessToken != "" && cfg.ExpiryDate != "" {
		if expiresAt, ok := cfg.ExpiresAt(); ok && expiresAt.After(s.now()) {
			return Token{AccessToken: cfg.AccessToken, ExpiryDate: cfg.ExpiryDate, CompanyID: cfg.CompanyId}, nil
		}
	}

	secret, err := s.openSecret(cfg.ClientSecret)
	if err != nil {
		return Token{}, newError(ErrAuthentication, op, "open client secret", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	baseURL := strings.TrimRight(cfg.BaseUrl, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+authenticatePath, nil)
	if err != nil {
		return Token{}, newError(ErrAuthentication, op, "build request", err)
	}
	req.SetBasicAuth(cfg.ClientId, secret)
	req.Header.Set("Accept", "application/json, application/xml")

	resp, err := s.http.Do(req)
	if err != nil {
		return Token{}, newError(ErrAuthentication, op, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, newError(ErrAuthentication, op, "read body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Token{}, newError(ErrAuthentication, op, "", &HTTPError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	parsed, err := Parse(body)
	if err != nil {
		return Token{}, newError(ErrAuthentication, op, "parse body", err)
	}
	token := Token{
		AccessToken: parsed.Document.FindString("access_token"),
		ExpiryDate:  normalizeExpiry(parsed.Document.FindString("expiry_time")),
		CompanyID:   parsed.Document.FindString("company_id"),
	}
	if token.AccessToken == "" {
		return Token{}, newError(ErrAuthentication, op, "access_token missing from response", nil)
	}

	if err := s.repo.UpdateVendorToken(ctx, token.AccessToken, token.ExpiryDate, token.CompanyID); err != nil {
		config.LogError(s.logger, moduleName, op, "persist access token", cfg.ClientId, err)
		return Token{}, newError(ErrAuthentication, op, "persist token", err)
	}

	s.logger.WithFields(logrus.Fields{
		"module":      moduleName,
		"func":        op,
		"expiry_date": token.ExpiryDate,
		"company_id":  token.CompanyID,
		"forced":      forceRefresh,
		"format":      parsed.Format,
	}).Info("access token refreshed")
	return token, nil
}

// normalizeExpiry rewrites known layouts to local models.ExpiryDateLayout.
// Unknown values are kept as received and count as expired on the next call.
func normalizeExpiry(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range expiryLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t.In(time.Local).Format(models.ExpiryDateLayout)
		}
	}
	return raw
}

func (t Token) String() string {
	return fmt.Sprintf("Token{expiry_date=%s company_id=%s}", t.ExpiryDate, t.CompanyID)
}
