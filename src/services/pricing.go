package services

// ModelPrice is the USD price per 1000 tokens
type ModelPrice struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// CreditPackage is a purchasable credit bundle
type CreditPackage struct {
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
	Bonus  float64 `json:"bonus"`
}

// FreeTier describes the grant for new users
type FreeTier struct {
	Credits     float64 `json:"credits"`
	Description string  `json:"description"`
}

// ProviderInfo is a supported provider with the display names of its models
type ProviderInfo struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Models []string `json:"models"`
}

// Pricing is the full static catalog served by /pricing/info
type Pricing struct {
	Currency          string                           `json:"currency"`
	PricingPer1kToken map[string]map[string]ModelPrice `json:"pricing_per_1k_tokens"`
	CreditPackages    []CreditPackage                  `json:"credit_packages"`
	FreeTier          FreeTier                         `json:"free_tier"`
}

// catalog is built once at package init and never mutated; accessors hand out copies.
var catalog = Pricing{
	Currency: "USD",
	PricingPer1kToken: map[string]map[string]ModelPrice{
		"openai": {
			"gpt-5.2":     {Input: 0.002, Output: 0.008},
			"gpt-4o":      {Input: 0.005, Output: 0.015},
			"gpt-4o-mini": {Input: 0.00015, Output: 0.0006},
		},
		"gemini": {
			"gemini-2.5-flash": {Input: 0.0001, Output: 0.0004},
			"gemini-2.5-pro":   {Input: 0.00125, Output: 0.005},
		},
		"claude": {
			"claude-sonnet-4":   {Input: 0.003, Output: 0.015},
			"claude-3.5-sonnet": {Input: 0.003, Output: 0.015},
		},
		"deepseek": {
			"deepseek-chat":  {Input: 0.00014, Output: 0.00028},
			"deepseek-coder": {Input: 0.00014, Output: 0.00028},
		},
		"groq": {
			"llama-3.3-70b": {Input: 0.00059, Output: 0.00079},
			"mixtral-8x7b":  {Input: 0.00024, Output: 0.00024},
		},
		"mistral": {
			"mistral-large": {Input: 0.002, Output: 0.006},
			"codestral":     {Input: 0.001, Output: 0.003},
		},
	},
	CreditPackages: []CreditPackage{
		{Amount: 5, Price: 5, Bonus: 0},
		{Amount: 10, Price: 10, Bonus: 0.5},
		{Amount: 25, Price: 25, Bonus: 2},
		{Amount: 50, Price: 50, Bonus: 5},
		{Amount: 100, Price: 100, Bonus: 15},
	},
	FreeTier: FreeTier{
		Credits:     1.0,
		Description: "$1 free credits for new users",
	},
}

var supportedProviders = []ProviderInfo{
	{ID: "openai", Name: "OpenAI", Models: []string{"GPT-5.2", "GPT-4o", "GPT-4o-mini"}},
	{ID: "gemini", Name: "Google Gemini", Models: []string{"Gemini 2.5 Flash", "Gemini 2.5 Pro"}},
	{ID: "claude", Name: "Anthropic Claude", Models: []string{"Claude Sonnet 4", "Claude 3.5 Sonnet"}},
	{ID: "deepseek", Name: "DeepSeek", Models: []string{"DeepSeek Chat", "DeepSeek Coder"}},
	{ID: "groq", Name: "Groq", Models: []string{"Llama 3.3 70B", "Mixtral 8x7B"}},
	{ID: "mistral", Name: "Mistral AI", Models: []string{"Mistral Large", "Codestral"}},
}

// PricingCatalog returns a copy of the static pricing table
func PricingCatalog() Pricing {
	prices := make(map[string]map[string]ModelPrice, len(catalog.PricingPer1kToken))
	for provider, models := range catalog.PricingPer1kToken {
		m := make(map[string]ModelPrice, len(models))
		for model, price := range models {
			m[model] = price
		}
		prices[provider] = m
	}
	return Pricing{
		Currency:          catalog.Currency,
		PricingPer1kToken: prices,
		CreditPackages:    append([]CreditPackage(nil), catalog.CreditPackages...),
		FreeTier:          catalog.FreeTier,
	}
}

// SupportedProviders returns a copy of the provider list
func SupportedProviders() []ProviderInfo {
	out := make([]ProviderInfo, len(supportedProviders))
	for i, p := range supportedProviders {
		out[i] = ProviderInfo{ID: p.ID, Name: p.Name, Models: append([]string(nil), p.Models...)}
	}
	return out
}

// IsKnownProvider reports whether id is a provider in the catalog
func IsKnownProvider(id string) bool {
	_, ok := catalog.PricingPer1kToken[id]
	return ok
}

// PriceFor looks up the per-1k-token price of a provider's model
func PriceFor(provider, model string) (ModelPrice, bool) {
	price, ok := catalog.PricingPer1kToken[provider][model]
	return price, ok
}

// EstimateCost prices a call from its token counts; unknown models cost 0
func EstimateCost(provider, model string, tokensIn, tokensOut int64) float64 {
	price, ok := PriceFor(provider, model)
	if !ok {
		return 0
	}
	return float64(tokensIn)/1000*price.Input + float64(tokensOut)/1000*price.Output
}
