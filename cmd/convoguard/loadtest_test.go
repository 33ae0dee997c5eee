// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

	tests := []struct {
		q    float64
		want float64
	}{
		{0.50, 50},
		{0.95, 100},
		{0.99, 100},
		{0.10, 10},
		{1.00, 100},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.q); got != tt.want {
			t.Errorf("percentile(%.2f) = %v, want %v", tt.q, got, tt.want)
		}
	}

	if got := percentile(nil, 0.95); got != 0 {
		t.Errorf("percentile of empty = %v, want 0", got)
	}
	if got := percentile([]float64{42}, 0.5); got != 42 {
		t.Errorf("percentile of single = %v, want 42", got)
	}
}

func TestRunLoadTest_AllSuccessful(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"label":"SAFE","confidence":0.6}`))
	}))
	defer server.Close()

	result, err := RunLoadTest(context.Background(), LoadTestConfig{
		URL:         server.URL,
		Requests:    40,
		Concurrency: 8,
		Texts:       []string{"alles gut", "mir geht es gut"},
	})
	if err != nil {
		t.Fatalf("RunLoadTest: %v", err)
	}

	if hits.Load() != 40 {
		t.Errorf("server saw %d requests, want 40", hits.Load())
	}
	if result.Errors != 0 {
		t.Errorf("errors = %d, want 0", result.Errors)
	}
	if result.ErrorRate != 0 {
		t.Errorf("error rate = %v, want 0", result.ErrorRate)
	}
	if !result.Pass {
		t.Errorf("a clean local run must pass, got %+v", result)
	}
	if result.P95Ms < result.P50Ms {
		t.Errorf("p95 %v below p50 %v", result.P95Ms, result.P50Ms)
	}
	if result.MaxMs < result.P99Ms {
		t.Errorf("max %v below p99 %v", result.MaxMs, result.P99Ms)
	}
}

func TestRunLoadTest_ErrorsCounted(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every fourth request fails.
		if hits.Add(1)%4 == 0 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"label":"SAFE","confidence":0.6}`))
	}))
	defer server.Close()

	result, err := RunLoadTest(context.Background(), LoadTestConfig{
		URL:         server.URL,
		Requests:    40,
		Concurrency: 4,
		Texts:       []string{"text"},
	})
	if err != nil {
		t.Fatalf("RunLoadTest: %v", err)
	}

	if result.Errors != 10 {
		t.Errorf("errors = %d, want 10", result.Errors)
	}
	if result.Pass {
		t.Errorf("a 25%% error rate must fail the thresholds")
	}
}

func TestRunLoadTest_AllFailing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	result, err := RunLoadTest(context.Background(), LoadTestConfig{
		URL:         server.URL,
		Requests:    10,
		Concurrency: 2,
		Texts:       []string{"text"},
	})
	if err != nil {
		t.Fatalf("RunLoadTest: %v", err)
	}

	if result.ErrorRate != 1.0 {
		t.Errorf("error rate = %v, want 1.0", result.ErrorRate)
	}
	if result.Pass {
		t.Errorf("a fully failing run must not pass")
	}
}

func TestRunLoadTest_Misconfiguration(t *testing.T) {
	tests := []struct {
		name string
		cfg  LoadTestConfig
	}{
		{"no url", LoadTestConfig{Requests: 1, Concurrency: 1, Texts: []string{"x"}}},
		{"zero requests", LoadTestConfig{URL: "http://localhost:1", Concurrency: 1, Texts: []string{"x"}}},
		{"zero concurrency", LoadTestConfig{URL: "http://localhost:1", Requests: 1, Texts: []string{"x"}}},
		{"no texts", LoadTestConfig{URL: "http://localhost:1", Requests: 1, Concurrency: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RunLoadTest(context.Background(), tt.cfg); err == nil {
				t.Errorf("expected a configuration error")
			}
		})
	}
}
