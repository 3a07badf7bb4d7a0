package nearsocial

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RelaySender submits contract calls through a signing relayer. The relayer
// holds the publishing account's key; this process never sees it.
type RelaySender struct {
	relayURL   string
	httpClient *http.Client
}

// NewRelaySender builds a sender for the given relayer endpoint.
func NewRelaySender(relayURL string, httpClient *http.Client) *RelaySender {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &RelaySender{relayURL: relayURL, httpClient: httpClient}
}

type relayRequest struct {
	ContractID string `json:"contractId"`
	MethodName string `json:"methodName"`
	Args       string `json:"args"`
}

type relayResponse struct {
	TransactionHash string `json:"transactionHash"`
	Error           string `json:"error"`
}

// SendTransaction posts one call to the relayer and returns the resulting
// transaction hash.
func (s *RelaySender) SendTransaction(ctx context.Context, contractID, method string, args []byte) (string, error) {
	body, err := json.Marshal(relayRequest{
		ContractID: contractID,
		MethodName: method,
		Args:       base64.StdEncoding.EncodeToString(args),
	})
	if err != nil {
		return "", fmt.Errorf("marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.relayURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read relay response: %w", err)
	}

	var parsed relayResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode >= http.StatusMultipleChoices {
		if parsed.Error != "" {
			return "", fmt.Errorf("relayer rejected call: %s", parsed.Error)
		}
		return "", fmt.Errorf("relayer returned status %d", resp.StatusCode)
	}
	return parsed.TransactionHash, nil
}
