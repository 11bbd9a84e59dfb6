// Package gateway is the boundary to the external payment provider. Initiation
// returns an opaque transaction handle; settlement happens elsewhere.
package gateway

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// InitiateRequest is what the provider needs to start a transfer.
type InitiateRequest struct {
	RequestID    int64   `json:"request_id"`
	ProjectID    int64   `json:"project_id"`
	HomeownerID  int64   `json:"homeowner_id"`
	ContractorID int64   `json:"contractor_id"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Description  string  `json:"description,omitempty"`
}

// InitiateResult is the provider's acknowledgement.
type InitiateResult struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

type Gateway interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
}

// NoopGateway acknowledges every initiation locally. Used when no provider is configured.
type NoopGateway struct {
	logger *slog.Logger
}

func NewNoopGateway(logger *slog.Logger) *NoopGateway {
	return &NoopGateway{logger: logger}
}

func (g *NoopGateway) Initiate(_ context.Context, req InitiateRequest) (*InitiateResult, error) {
	res := &InitiateResult{
		TransactionID: "local-" + uuid.NewString(),
		Status:        "initiated",
	}
	g.logger.Info("payment initiated without provider",
		"request_id", req.RequestID,
		"amount", req.Amount,
		"transaction_id", res.TransactionID,
	)
	return res, nil
}
