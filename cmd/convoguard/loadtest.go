// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pilot load test acceptance thresholds.
const (
	maxP95Ms     = 500.0
	maxErrorRate = 0.05
)

// LoadTestConfig drives one load test run against a live service.
type LoadTestConfig struct {
	// URL is the service base URL, without a trailing slash.
	URL string

	// Requests is the total number of classify calls to issue.
	Requests int

	// Concurrency bounds the number of in-flight requests.
	Concurrency int

	// Texts are cycled through as request payloads.
	Texts []string

	// Client is the HTTP client to use; nil gets a 10s-timeout default.
	Client *http.Client
}

// LoadTestResult aggregates a finished run. Latency percentiles are
// computed over successful requests only.
type LoadTestResult struct {
	Requests  int     `json:"requests"`
	Errors    int     `json:"errors"`
	ErrorRate float64 `json:"error_rate"`
	P50Ms     float64 `json:"p50_ms"`
	P95Ms     float64 `json:"p95_ms"`
	P99Ms     float64 `json:"p99_ms"`
	MaxMs     float64 `json:"max_ms"`
	Pass      bool    `json:"pass"`
}

// RunLoadTest issues cfg.Requests classify calls with bounded
// concurrency and judges the run against the pilot thresholds
// (p95 under 500ms, error rate under 5%). Individual request failures
// are counted, never fatal; only a misconfiguration returns an error.
func RunLoadTest(ctx context.Context, cfg LoadTestConfig) (LoadTestResult, error) {
	if cfg.URL == "" {
		return LoadTestResult{}, fmt.Errorf("no service URL configured")
	}
	if cfg.Requests <= 0 {
		return LoadTestResult{}, fmt.Errorf("requests must be positive, got %d", cfg.Requests)
	}
	if cfg.Concurrency <= 0 {
		return LoadTestResult{}, fmt.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
	}
	if len(cfg.Texts) == 0 {
		return LoadTestResult{}, fmt.Errorf("no request texts configured")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	endpoint := cfg.URL + "/v1/classify"
	latencies := make([]float64, cfg.Requests)
	succeeded := make([]bool, cfg.Requests)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	for i := 0; i < cfg.Requests; i++ {
		g.Go(func() error {
			payload, err := json.Marshal(map[string]string{
				"text": cfg.Texts[i%len(cfg.Texts)],
			})
			if err != nil {
				return nil
			}

			start := time.Now()
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
			if err != nil {
				return nil
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return nil
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return nil
			}

			latencies[i] = float64(time.Since(start).Microseconds()) / 1000.0
			succeeded[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return LoadTestResult{}, err
	}

	var ok []float64
	for i, s := range succeeded {
		if s {
			ok = append(ok, latencies[i])
		}
	}
	sort.Float64s(ok)

	errors := cfg.Requests - len(ok)
	result := LoadTestResult{
		Requests:  cfg.Requests,
		Errors:    errors,
		ErrorRate: float64(errors) / float64(cfg.Requests),
		P50Ms:     percentile(ok, 0.50),
		P95Ms:     percentile(ok, 0.95),
		P99Ms:     percentile(ok, 0.99),
	}
	if len(ok) > 0 {
		result.MaxMs = ok[len(ok)-1]
	}
	result.Pass = result.P95Ms < maxP95Ms && result.ErrorRate < maxErrorRate && len(ok) > 0
	return result, nil
}

// percentile returns the nearest-rank q-th percentile of an ascending
// slice, 0 for an empty one.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(q * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
