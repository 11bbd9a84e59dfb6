package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/buildhub-payments/internal/common"
)

// HTTPGateway posts initiation requests as JSON to {baseURL}/payments.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPGateway {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (g *HTTPGateway) Initiate(ctx context.Context, in InitiateRequest) (*InitiateResult, error) {
	headers := map[string]string{}
	if g.apiKey != "" {
		headers["Authorization"] = "Bearer " + g.apiKey
	}
	if in.Currency == "" {
		in.Currency = "INR"
	}

	raw, status, err := sendJSON(ctx, g.client, g.baseURL+"/payments", in, headers, g.logger)
	if err != nil {
		return nil, common.NewAppError("GATEWAY_ERROR",
			fmt.Sprintf("payment provider rejected initiation (status %d)", status), fmt.Errorf("%w: %v", common.ErrGateway, err))
	}

	var res InitiateResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, common.NewAppError("GATEWAY_ERROR", "payment provider returned an unreadable response",
			fmt.Errorf("%w: %v", common.ErrGateway, err))
	}
	if res.TransactionID == "" {
		return nil, common.NewAppError("GATEWAY_ERROR", "payment provider returned no transaction id", common.ErrGateway)
	}
	if res.Status == "" {
		res.Status = "initiated"
	}
	return &res, nil
}

// sendJSON posts body to url and returns the raw response body and status.
func sendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		logger.Error("gateway.http.encode_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		logger.Error("gateway.http.build_request_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Info("gateway.http.request", "req_id", reqID, "url", url, "content_length", len(bs))

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("gateway.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("gateway.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	logger.Info("gateway.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}
