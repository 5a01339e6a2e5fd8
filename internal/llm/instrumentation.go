package llm

import "go.opentelemetry.io/otel"

const scopeName = "intervue/voice/internal/llm"

var tracer = otel.Tracer(scopeName)
