package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cutekitek/rankode-judge/internal/mappers"
	"github.com/cutekitek/rankode-judge/internal/repository/models"
	"github.com/pkg/errors"
)

const acceptedBody = "OK"

// HTTPReporter posts every result as JSON to <base>/result and expects the
// receiver to answer with a plain "OK".
type HTTPReporter struct {
	endpoint string
	client   *http.Client
}

func NewHTTPReporter(baseURL string, client *http.Client) *HTTPReporter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPReporter{
		endpoint: strings.TrimRight(baseURL, "/") + "/result",
		client:   client,
	}
}

func (r *HTTPReporter) Report(ctx context.Context, submissionId string, res models.CaseResult) error {
	body, err := json.Marshal(mappers.CaseResultToMessage(submissionId, res))
	if err != nil {
		return errors.Wrap(err, "failed to encode result")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send result")
	}
	defer resp.Body.Close()

	answer, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(answer)) != acceptedBody {
		return fmt.Errorf("result rejected: %s: %q", resp.Status, answer)
	}
	return nil
}
