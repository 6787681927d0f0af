package modelgateway

// ModelPricing describes per-million-token pricing for a model.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// pricingTable is the static cost table the reasoning/efficient providers
// consult to turn token counts into an estimated dollar cost. Unknown
// model names fall back to the "default" entry.
var pricingTable = map[string]ModelPricing{
	"reasoning-default": {InputPerMillion: 15.0, OutputPerMillion: 75.0},
	"efficient-default": {InputPerMillion: 0.80, OutputPerMillion: 4.0},
	"default":           {InputPerMillion: 1.0, OutputPerMillion: 2.0},
}

func costFor(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := pricingTable[model]
	if !ok {
		pricing = pricingTable["default"]
	}
	return float64(inputTokens)/1_000_000*pricing.InputPerMillion +
		float64(outputTokens)/1_000_000*pricing.OutputPerMillion
}
