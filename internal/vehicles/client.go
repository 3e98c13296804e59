// Package vehicles — клиент внешнего сервиса идентификации автомобиля.
package vehicles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clearglass/quote-wizard/internal/wizard"
)

// IdentifyRequest — либо VIN, либо номер + штат.
type IdentifyRequest struct {
	VIN          string `json:"vin,omitempty"`
	LicensePlate string `json:"license_plate,omitempty"`
	State        string `json:"state,omitempty"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Identify резолвит автомобиль и кандидатов деталей. Ошибка вызова —
// транзиентная, привязанная к шагу 4: вызывающая сторона показывает её
// пользователю и ничего в сессии не меняет.
func (c *Client) Identify(ctx context.Context, req IdentifyRequest) (*wizard.VehicleLookupResult, error) {
	if req.VIN == "" && (req.LicensePlate == "" || req.State == "") {
		return nil, fmt.Errorf("vin or license plate with state is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/vehicles/identify/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("identify vehicle: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("vehicle not found")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vehicle service returned %s", resp.Status)
	}

	var res wizard.VehicleLookupResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode lookup result: %w", err)
	}
	return &res, nil
}
