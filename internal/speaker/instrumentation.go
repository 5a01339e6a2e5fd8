package speaker

import "go.opentelemetry.io/otel"

const scopeName = "intervue/voice/internal/speaker"

var tracer = otel.Tracer(scopeName)
