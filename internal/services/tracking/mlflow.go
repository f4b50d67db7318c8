package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	xhttp "DemandCast/pkg/http"
	"DemandCast/pkg/logger"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const apiPrefix = "/api/2.0/mlflow"

var errNotFound = errors.New("mlflow: resource does not exist")

type Config struct {
	URL            string
	Experiment     string
	Timeout        time.Duration
	RequestsPerSec float64
}

// MLflowClient records runs in an MLflow tracking server over its REST API.
// A nil client is a valid disabled tracker.
type MLflowClient struct {
	baseURL    string
	experiment string
	http       *xhttp.Client
	limiter    *rate.Limiter
	// experiment name -> id
	experiments *lru.Cache[string, string]
	log         *logger.Logger
}

func NewMLflowClient(cfg Config, log *logger.Logger) (*MLflowClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mlflow url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 20
	}
	experiments, err := lru.New[string, string](64)
	if err != nil {
		return nil, err
	}
	return &MLflowClient{
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		experiment:  cfg.Experiment,
		http:        xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), int(cfg.RequestsPerSec)+1),
		experiments: experiments,
		log:         log,
	}, nil
}

type keyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type metric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int64   `json:"step"`
}

// StartRun opens a tracker run under the configured experiment and logs params on it.
func (c *MLflowClient) StartRun(ctx context.Context, runID string, tags, params map[string]string) (string, error) {
	if c == nil {
		return "", nil
	}
	expID, err := c.experimentID(ctx, c.experiment)
	if err != nil {
		return "", err
	}

	var created struct {
		Run struct {
			Info struct {
				RunID string `json:"run_id"`
			} `json:"info"`
		} `json:"run"`
	}
	req := map[string]interface{}{
		"experiment_id": expID,
		"run_name":      "forecast_" + runID,
		"start_time":    time.Now().UnixMilli(),
		"tags":          sortedPairs(tags),
	}
	if err := c.post(ctx, "/runs/create", req, &created); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	trackerID := created.Run.Info.RunID

	if len(params) > 0 {
		batch := map[string]interface{}{"run_id": trackerID, "params": sortedPairs(params)}
		if err := c.post(ctx, "/runs/log-batch", batch, nil); err != nil {
			return trackerID, fmt.Errorf("log params: %w", err)
		}
	}
	return trackerID, nil
}

func (c *MLflowClient) LogMetrics(ctx context.Context, trackerRunID string, metrics map[string]float64) error {
	if c == nil || trackerRunID == "" || len(metrics) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]metric, 0, len(keys))
	for _, k := range keys {
		out = append(out, metric{Key: k, Value: metrics[k], Timestamp: now})
	}
	return c.post(ctx, "/runs/log-batch", map[string]interface{}{"run_id": trackerRunID, "metrics": out}, nil)
}

func (c *MLflowClient) EndRun(ctx context.Context, trackerRunID string, failed bool) error {
	if c == nil || trackerRunID == "" {
		return nil
	}
	status := "FINISHED"
	if failed {
		status = "FAILED"
	}
	req := map[string]interface{}{"run_id": trackerRunID, "status": status, "end_time": time.Now().UnixMilli()}
	return c.post(ctx, "/runs/update", req, nil)
}

// experimentID resolves name, creating the experiment on first use.
func (c *MLflowClient) experimentID(ctx context.Context, name string) (string, error) {
	if id, ok := c.experiments.Get(name); ok {
		return id, nil
	}

	var found struct {
		Experiment struct {
			ExperimentID string `json:"experiment_id"`
		} `json:"experiment"`
	}
	err := c.call(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         "/experiments/get-by-name",
		QueryParams: map[string][]string{"experiment_name": {name}},
	}, &found)
	id := found.Experiment.ExperimentID
	switch {
	case err == nil:
	case errors.Is(err, errNotFound):
		var created struct {
			ExperimentID string `json:"experiment_id"`
		}
		if err := c.post(ctx, "/experiments/create", map[string]string{"name": name}, &created); err != nil {
			return "", fmt.Errorf("create experiment %q: %w", name, err)
		}
		id = created.ExperimentID
		c.log.Info("mlflow experiment created", logger.String("experiment", name), logger.String("experiment_id", id))
	default:
		return "", fmt.Errorf("get experiment %q: %w", name, err)
	}

	c.experiments.Add(name, id)
	return id, nil
}

func (c *MLflowClient) post(ctx context.Context, path string, body, out interface{}) error {
	return c.call(ctx, &xhttp.RequestOptions{Method: xhttp.MethodPost, URL: path, Body: body}, out)
}

// call prefixes opts.URL with the API root and maps MLflow error codes.
func (c *MLflowClient) call(ctx context.Context, opts *xhttp.RequestOptions, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	path := opts.URL
	opts.URL = c.baseURL + apiPrefix + path

	err := c.http.SendAndParse(ctx, opts, out)
	var se *xhttp.StatusError
	if !errors.As(err, &se) {
		return err
	}
	var apiErr struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
	}
	_ = json.Unmarshal(se.Body, &apiErr)
	if se.Code == http.StatusNotFound || apiErr.ErrorCode == "RESOURCE_DOES_NOT_EXIST" {
		return errNotFound
	}
	return fmt.Errorf("mlflow %s %s: status %d: %s", opts.Method, path, se.Code, apiErr.Message)
}

func sortedPairs(m map[string]string) []keyValue {
	out := make([]keyValue, 0, len(m))
	for k, v := range m {
		out = append(out, keyValue{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
