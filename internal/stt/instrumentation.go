package stt

import "go.opentelemetry.io/otel"

const scopeName = "intervue/voice/internal/stt"

var tracer = otel.Tracer(scopeName)
