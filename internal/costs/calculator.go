// Package costs provides cost calculation for API usage.
package costs

import (
	"os"
	"strconv"
)

// Pricing constants (in cents per unit for precision).
// These can be overridden via environment variables.
var (
	// DeepgramCentsPerMinute is the cost per minute for Deepgram Nova-3 streaming STT.
	// Default: $0.0077/min = 0.77 cents/min
	DeepgramCentsPerMinute = getEnvFloat("COST_DEEPGRAM_CENTS_PER_MIN", 0.77)

	// LLMCentsPerThousandInputTokens is the cost per 1K input tokens.
	// Qwen 2.5 Coder 32B via OpenRouter: $0.07/1M = 0.007 cents/1K tokens
	LLMCentsPerThousandInputTokens = getEnvFloat("COST_LLM_INPUT_CENTS_PER_1K", 0.007)

	// LLMCentsPerThousandOutputTokens is the cost per 1K output tokens.
	// Default: $0.16/1M = 0.016 cents/1K tokens
	LLMCentsPerThousandOutputTokens = getEnvFloat("COST_LLM_OUTPUT_CENTS_PER_1K", 0.016)

	// ElevenLabsCentsPerThousandChars is the cost per 1K characters for ElevenLabs TTS.
	// Default: $0.18/1K chars = 18 cents/1K chars
	ElevenLabsCentsPerThousandChars = getEnvFloat("COST_ELEVENLABS_CENTS_PER_1K_CHARS", 18.0)
)

// ExchangeMetrics contains the raw metrics from one conversational exchange.
type ExchangeMetrics struct {
	STTDurationSeconds int // Audio processed by STT
	LLMInputTokens     int // Tokens sent to the model
	LLMOutputTokens    int // Tokens received from the model
	TTSCharacters      int // Characters sent to TTS
}

// ExchangeCosts contains the calculated costs for an exchange in cents.
type ExchangeCosts struct {
	STTCostCents   int
	LLMCostCents   int
	TTSCostCents   int
	TotalCostCents int
}

// CalculateExchangeCosts computes the costs for one exchange from usage metrics.
func CalculateExchangeCosts(m ExchangeMetrics) ExchangeCosts {
	sttMinutes := float64(m.STTDurationSeconds) / 60.0
	sttCents := sttMinutes * DeepgramCentsPerMinute

	llmInputCents := (float64(m.LLMInputTokens) / 1000.0) * LLMCentsPerThousandInputTokens
	llmOutputCents := (float64(m.LLMOutputTokens) / 1000.0) * LLMCentsPerThousandOutputTokens
	llmCents := llmInputCents + llmOutputCents

	ttsCents := (float64(m.TTSCharacters) / 1000.0) * ElevenLabsCentsPerThousandChars

	costs := ExchangeCosts{
		STTCostCents: roundToInt(sttCents),
		LLMCostCents: roundToInt(llmCents),
		TTSCostCents: roundToInt(ttsCents),
	}
	costs.TotalCostCents = costs.STTCostCents + costs.LLMCostCents + costs.TTSCostCents

	return costs
}

// EstimateTokens approximates the token count of a text. Four characters per
// token is close enough for cost tracking; exact counts would need the
// model's tokenizer.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// roundToInt rounds a float to the nearest integer.
func roundToInt(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}

// getEnvFloat returns an environment variable as float64, or the default if not set.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
