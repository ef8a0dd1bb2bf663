package tokencounter

// ModelPricing is USD cost per 1M tokens, input and output priced
// separately since output tokens typically cost several times more.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultPricing is a static snapshot of provider list pricing. Subject to
// drift as providers change prices; hosts override via Counter.SetPricing.
var defaultPricing = map[string]ModelPricing{
	"gpt-4o":             {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":        {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4.1":            {InputPer1M: 2.00, OutputPer1M: 8.00},
	"gpt-4.1-mini":       {InputPer1M: 0.40, OutputPer1M: 1.60},
	"o1":                 {InputPer1M: 15.00, OutputPer1M: 60.00},
	"o1-mini":            {InputPer1M: 1.10, OutputPer1M: 4.40},
	"o3-mini":            {InputPer1M: 1.10, OutputPer1M: 4.40},
	"claude-opus-4":      {InputPer1M: 15.00, OutputPer1M: 75.00},
	"claude-sonnet-4":    {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-7-sonnet":  {InputPer1M: 3.00, OutputPer1M: 15.00},
}

func cloneDefaultPricing() map[string]ModelPricing {
	out := make(map[string]ModelPricing, len(defaultPricing))
	for k, v := range defaultPricing {
		out[k] = v
	}
	return out
}
