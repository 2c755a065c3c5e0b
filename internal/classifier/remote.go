package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/velvetlabs/signalpipe/internal/resilience"
	"github.com/velvetlabs/signalpipe/internal/types"
)

// remoteRequest is the wire request to an external scoring service.
type remoteRequest struct {
	Text    string         `json:"text"`
	Context map[string]any `json:"context,omitempty"`
}

// remoteResponse is the wire response from an external scoring service.
type remoteResponse struct {
	Signal     string         `json:"signal"`
	Confidence float64        `json:"confidence"`
	Derived    map[string]any `json:"derived,omitempty"`
}

// RemoteClassifier posts fragments to an external HTTP scoring service
// (for example a model-backed preprocessing worker). Transient failures
// get one quick retry; anything else surfaces as a classifier error.
type RemoteClassifier struct {
	endpoint string
	client   *http.Client
	retry    resilience.RetryConfig
}

// NewRemoteClassifier creates a classifier backed by the given endpoint.
func NewRemoteClassifier(endpoint string) *RemoteClassifier {
	return &RemoteClassifier{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
	}
}

// Classify implements Classifier.
func (rc *RemoteClassifier) Classify(ctx context.Context, text string, meta map[string]any) (types.ClassificationOutcome, error) {
	body, err := json.Marshal(remoteRequest{Text: text, Context: meta})
	if err != nil {
		return types.ClassificationOutcome{}, fmt.Errorf("failed to encode classify request: %w", err)
	}

	var outcome types.ClassificationOutcome
	err = resilience.RetryWithConfig(ctx, rc.retry, func() error {
		result, callErr := rc.call(ctx, body)
		if callErr != nil {
			return callErr
		}
		outcome = result
		return nil
	})
	if err != nil {
		return types.ClassificationOutcome{}, err
	}

	return outcome, nil
}

func (rc *RemoteClassifier) call(ctx context.Context, body []byte) (types.ClassificationOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rc.endpoint, bytes.NewReader(body))
	if err != nil {
		return types.ClassificationOutcome{}, fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := rc.client.Do(req)
	if err != nil {
		return types.ClassificationOutcome{}, fmt.Errorf("classify call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return types.ClassificationOutcome{}, fmt.Errorf("classifier backend error: status %d, body: %s", resp.StatusCode, string(payload))
	}

	var wire remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return types.ClassificationOutcome{}, fmt.Errorf("failed to decode classify response: %w", err)
	}

	signal := types.SignalType(wire.Signal)
	if !signal.Valid() {
		return types.ClassificationOutcome{}, fmt.Errorf("classifier backend returned unknown signal %q", wire.Signal)
	}

	confidence := wire.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return types.ClassificationOutcome{
		Signal:     signal,
		Confidence: confidence,
		Derived:    wire.Derived,
	}, nil
}
