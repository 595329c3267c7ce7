package trajgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/stcurve/internal/domain/model"
	"github.com/okian/stcurve/pkg/logger"
)

// Submission outcomes.
const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

var errNotReady = errors.New("result not ready")

// HTTPClient wraps http.Client with a timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

// submitTrajectories posts every trajectory using config.Workers goroutines.
func submitTrajectories(ctx context.Context, config *Config, trajectories []Trajectory, stats *Stats) {
	logger.Get().Info(ctx, "submitting trajectories",
		logger.Int("count", len(trajectories)),
		logger.Int("workers", config.Workers),
	)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/trajectories"

	var tolerance *float64
	if config.Tolerance >= 0 {
		tol := config.Tolerance
		tolerance = &tol
	}

	var submitted, accepted, duplicate, rejected, failed atomic.Int64
	jobs := make(chan Trajectory, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				outcome := submitSingle(ctx, client, url, SubmitRequest{TrajectoryID: t.ID, Tolerance: tolerance, Points: t.Points})
				submitted.Add(1)
				switch outcome {
				case outcomeAccepted:
					accepted.Add(1)
				case outcomeDuplicate:
					duplicate.Add(1)
				case outcomeRejected:
					rejected.Add(1)
				default:
					failed.Add(1)
				}
				if config.Verbose {
					logger.Get().Debug(ctx, "submitted trajectory",
						logger.String("trajectoryID", t.ID),
						logger.String("outcome", outcome),
					)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, t := range trajectories {
			select {
			case <-ctx.Done():
				return
			case jobs <- t:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Accepted = int(accepted.Load())
	stats.Duplicate = int(duplicate.Load())
	stats.Rejected = int(rejected.Load())
	stats.Failed = int(failed.Load())

	logger.Get().Info(ctx, "submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
	)
}

func submitSingle(ctx context.Context, client *HTTPClient, url string, req SubmitRequest) string {
	resp, err := client.Post(ctx, url, req)
	if err != nil {
		return outcomeFailed
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return outcomeFailed
	}

	var ack AckResponse
	switch resp.StatusCode {
	case StatusAccepted:
		return outcomeAccepted
	case StatusOK:
		if err := json.Unmarshal(body, &ack); err == nil && ack.Duplicate {
			return outcomeDuplicate
		}
		return outcomeAccepted
	case StatusTooManyRequests:
		return outcomeRejected
	default:
		return outcomeFailed
	}
}

// fetchResult returns the stored result, or errNotReady while it is pending.
func fetchResult(ctx context.Context, client *HTTPClient, baseURL, id string) (model.Result, error) {
	resp, err := client.Get(ctx, baseURL+"/trajectories/"+id)
	if err != nil {
		return model.Result{}, fmt.Errorf("fetch result %s: %w", id, err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return model.Result{}, fmt.Errorf("fetch result %s: read body: %w", id, err)
	}
	switch resp.StatusCode {
	case StatusOK:
		var r model.Result
		if err := json.Unmarshal(body, &r); err != nil {
			return model.Result{}, fmt.Errorf("fetch result %s: decode: %w", id, err)
		}
		return r, nil
	case http.StatusNotFound:
		return model.Result{}, errNotReady
	default:
		return model.Result{}, fmt.Errorf("fetch result %s: status %d", id, resp.StatusCode)
	}
}

// pollResults waits for the results of ids until all arrive or
// config.PollTimeout elapses.
func pollResults(ctx context.Context, config *Config, ids []string, stats *Stats) map[string]model.Result {
	ctx, cancel := context.WithTimeout(ctx, config.PollTimeout)
	defer cancel()

	client := newHTTPClient(config.Timeout)
	results := make(map[string]model.Result, len(ids))
	var mu sync.Mutex

	pending := make(chan string, len(ids))
	for _, id := range ids {
		pending <- id
	}
	close(pending)

	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range pending {
				r, ok := pollOne(ctx, client, config, id)
				if !ok {
					continue
				}
				mu.Lock()
				results[id] = r
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	stats.ResultsRetrieved = len(results)
	if len(results) < len(ids) {
		logger.Get().Warn(ctx, "some results never arrived",
			logger.Int("missing", len(ids)-len(results)),
		)
	}
	return results
}

func pollOne(ctx context.Context, client *HTTPClient, config *Config, id string) (model.Result, bool) {
	for {
		r, err := fetchResult(ctx, client, config.BaseURL, id)
		switch {
		case err == nil:
			return r, true
		case !errors.Is(err, errNotReady):
			logger.Get().Warn(ctx, "result fetch failed", logger.String("trajectoryID", id), logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return model.Result{}, false
		case <-time.After(config.PollInterval):
		}
	}
}
