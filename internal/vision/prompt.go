package vision

import "fmt"

const systemPrompt = `You are a currency recognition expert. Analyze images of banknotes and coins to identify currency type, denomination, and quantity. Focus on UAH (Ukrainian Hryvnia), USD (US Dollar), and EUR (Euro). Return structured JSON responses.`

const userPromptTemplate = `Analyze this image of currency (banknotes/coins) and return a JSON response with:
{
  "currencies_detected": [
    {
      "currency_type": "UAH/USD/EUR/etc",
      "denomination": "value as string",
      "quantity": number,
      "confidence": "high/medium/low"
    }
  ],
  "total_value": "calculated total if same currency type",
  "notes": "any additional observations",
  "provider": %q
}

Respond ONLY with the JSON object, no markdown or other text.`

// userPrompt builds the user instruction with the provider's own label so
// the model echoes it back in the "provider" field.
func userPrompt(provider string) string {
	return fmt.Sprintf(userPromptTemplate, provider)
}
