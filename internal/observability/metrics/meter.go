// Copyright 2026 The Sentra Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{
			meter: otel.Meter("noop"),
		}, nil
	}

	// Meter from the global provider; exporter setup lives with the
	// deployment (standard OTEL_* environment variables).
	return &Meter{
		meter: otel.Meter(serviceName),
	}, nil
}

// DecisionMetrics counts authorization and credential-validation outcomes.
type DecisionMetrics struct {
	accessChecks    metric.Int64Counter
	tokenValidation metric.Int64Counter
}

// NewDecisionMetrics registers the decision counters.
func (m *Meter) NewDecisionMetrics() (*DecisionMetrics, error) {
	accessChecks, err := m.meter.Int64Counter(
		"sentra.access.checks",
		metric.WithDescription("Authorization decisions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create access check counter: %w", err)
	}

	tokenValidation, err := m.meter.Int64Counter(
		"sentra.credential.validations",
		metric.WithDescription("Credential validations by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation counter: %w", err)
	}

	return &DecisionMetrics{
		accessChecks:    accessChecks,
		tokenValidation: tokenValidation,
	}, nil
}

// RecordAccessCheck counts one authorization decision.
func (d *DecisionMetrics) RecordAccessCheck(ctx context.Context, allowed bool, resourceType string) {
	if d == nil {
		return
	}
	d.accessChecks.Add(ctx, 1,
		metric.WithAttributes(
			attribute.Bool("allowed", allowed),
			attribute.String("resource_type", resourceType),
		),
	)
}

// RecordTokenValidation counts one credential validation.
func (d *DecisionMetrics) RecordTokenValidation(ctx context.Context, valid bool) {
	if d == nil {
		return
	}
	d.tokenValidation.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("valid", valid)),
	)
}
