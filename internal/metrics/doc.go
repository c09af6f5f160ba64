// Copyright (c) CouncilFlow Authors.
// Licensed under the MIT License.

/*
Package metrics provides Prometheus metrics collection across the HTTP, LLM,
council, cache and database dimensions.

# Overview

Collector registers and records all Prometheus metrics through promauto, so
no manual Registry management is needed. Metrics are isolated per namespace
and grouped by labels for dashboards and alerting.

# Core types

  - Collector: holds the Counter, Histogram and Gauge vectors, grouped by
    concern.

# Capabilities

  - HTTP metrics: request totals, duration, request/response sizes, grouped
    by method/path/status with status collapsed to 2xx/3xx/4xx/5xx.
  - LLM metrics: request totals, duration, token usage (prompt/completion)
    and cost, grouped by provider/model.
  - Council metrics: rounds by outcome, per-stage durations, surviving
    answers per round and member model failures per stage.
  - Cache metrics: hit and miss counters grouped by cache_type.
  - Database metrics: open/idle connection gauges and query duration
    histograms grouped by database/operation.
*/
package metrics
