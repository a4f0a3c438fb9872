// Package observability provides metrics and attribute helpers.
package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	attrModelFamily = "model_family"
	attrStatus      = "status"
	attrSweep       = "sweep"
)

func modelFamilyAttr(family string) attribute.KeyValue {
	return attribute.String(attrModelFamily, family)
}

func statusAttr(status string) attribute.KeyValue {
	return attribute.String(attrStatus, status)
}

func sweepAttr(sweep string) attribute.KeyValue {
	return attribute.String(attrSweep, sweep)
}

// WithModelFamily returns a metric option with the model family attribute.
func WithModelFamily(family string) metric.MeasurementOption {
	return metric.WithAttributes(modelFamilyAttr(family))
}

// WithStatus returns a metric option with the terminal status attribute.
func WithStatus(status string) metric.MeasurementOption {
	return metric.WithAttributes(statusAttr(status))
}
