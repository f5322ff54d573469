package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"spartan-crm/internal/repository"
	"spartan-crm/internal/twenty"
	"spartan-crm/pkg/logger"
	"spartan-crm/pkg/secret"
)

// apiError is a response that has been decided but not yet written
type apiError struct {
	status int
	body   echo.Map
}

func (e *apiError) Error() string { return fmt.Sprintf("%d: %v", e.status, e.body["error"]) }

func fail(status int, msg string) *apiError {
	return &apiError{status: status, body: echo.Map{"error": msg}}
}

// respond writes err if it is an apiError, otherwise a generic 500
func respond(c echo.Context, err error) error {
	var ae *apiError
	if errors.As(err, &ae) {
		return c.JSON(ae.status, ae.body)
	}
	logger.FromContext(c).Error("Unhandled handler error", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// remoteFor builds a remote client for the request's company. The API key is
// decrypted here and lives only as long as the returned client.
func (h *Handler) remoteFor(c echo.Context) (RemoteCRM, uint, error) {
	log := logger.FromContext(c)

	companyID, ok := companyScope(c)
	if !ok {
		return nil, 0, fail(http.StatusBadRequest, "company context required")
	}

	company, err := h.Companies.Get(c.Request().Context(), companyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, fail(http.StatusNotFound, "company not found")
		}
		log.Error("Failed to load company", zap.Uint("company_id", companyID), zap.Error(err))
		return nil, 0, fail(http.StatusInternalServerError, "database error")
	}
	if company.TwentyAPIURL == "" || company.TwentyAPIKey == "" {
		return nil, 0, fail(http.StatusBadRequest, "company has no CRM credentials configured")
	}

	apiKey, err := secret.Decrypt(company.TwentyAPIKey)
	if err != nil {
		log.Error("Failed to decrypt company API key", zap.Uint("company_id", companyID), zap.Error(err))
		return nil, 0, fail(http.StatusInternalServerError, "failed to decrypt company credentials")
	}

	client := h.Remote(twenty.Config{
		BaseURL: company.TwentyAPIURL,
		APIKey:  apiKey,
		Timeout: h.RemoteTimeout,
	}, log.With(zap.Uint("company_id", companyID)))
	return client, companyID, nil
}
