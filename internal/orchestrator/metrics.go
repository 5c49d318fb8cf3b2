// ABOUTME: Gateway request counts read from Prometheus
// ABOUTME: Flattens an instant-vector query result into handler/method/status rows

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
)

type promResponse struct {
	Status string `json:"status"`
	Data   struct {
		Result []struct {
			Metric map[string]string `json:"metric"`
			Value  []any             `json:"value"`
		} `json:"result"`
	} `json:"data"`
}

// RequestCountQuery returns the PromQL used for request counts over window.
func RequestCountQuery(window string) string {
	return fmt.Sprintf(`sum by (handler, method, status) (increase(http_request_duration_seconds_count{status!=""}[%s]))`, window)
}

// RequestCounts queries Prometheus for per-handler request counts.
func (o *Orchestrator) RequestCounts(ctx context.Context) ([]RequestCount, error) {
	if o.cfg.PrometheusURL == "" {
		return nil, ErrMetricsDisabled
	}

	raw, err := o.upstream.Get(ctx, o.urls.promQuery(RequestCountQuery(o.cfg.MetricsWindow)))
	if err != nil {
		return nil, fmt.Errorf("query prometheus: %w", err)
	}

	var resp promResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode prometheus response: %w", err)
	}

	counts := make([]RequestCount, 0, len(resp.Data.Result))
	for _, r := range resp.Data.Result {
		c := RequestCount{
			Handler: r.Metric["handler"],
			Method:  r.Metric["method"],
			Status:  r.Metric["status"],
		}
		if len(r.Value) == 2 {
			c.Count = fmt.Sprint(r.Value[1])
		}
		counts = append(counts, c)
	}
	return counts, nil
}
