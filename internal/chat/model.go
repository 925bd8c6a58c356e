package chat

// Generation providers selectable through GENERATION_PROVIDER.
const (
	ProviderCompletions = "completions"
	ProviderGemini      = "gemini"
)

// Model IDs
//
// | Provider     | Model ID                              | Use Case                        |
// |--------------|---------------------------------------|---------------------------------|
// | completions  | mistralai/Ministral-8B-Instruct-2410  | Default horoscope writer        |
// | gemini       | gemini-2.5-flash                      | Stable, balanced performance    |
// | gemini       | gemini-2.5-flash-lite                 | High-throughput, lowest cost    |
const (
	// ModelMinistral8B is the io.net hosted model the channel launched with.
	ModelMinistral8B = "mistralai/Ministral-8B-Instruct-2410"

	// ModelGemini25Flash is stable, balanced performance.
	ModelGemini25Flash = "gemini-2.5-flash"

	// ModelGemini25FlashLite is for high-throughput, lowest cost.
	ModelGemini25FlashLite = "gemini-2.5-flash-lite"
)

// DefaultModel returns the model used when GENERATION_MODEL is unset.
func DefaultModel(provider string) string {
	if provider == ProviderGemini {
		return ModelGemini25Flash
	}
	return ModelMinistral8B
}
