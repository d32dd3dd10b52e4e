package llm

import (
	"fmt"
	"strings"
)

// Prompt templates per extraction kind. Pure functions: (content, hints) -> prompt.
// Every template ends with the same instruction to return only JSON; the repair
// parser handles the cases where the model ignores it.

const maxPromptContent = 12000

func truncateContent(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxPromptContent {
		return s[:maxPromptContent] + "\n…(truncated)"
	}
	return s
}

// BuildExtractionPrompt asks for the full food-truck details bag from scraped
// page markdown.
func BuildExtractionPrompt(markdown, sourceURL string) string {
	return fmt.Sprintf(`Extract structured food truck information from the following website content.

Source URL: %s

Website content (markdown):
%s

Expected JSON format:
{
  "name": "string",
  "description": "string",
  "cuisine_type": ["string"],
  "price_range": "$" | "$$" | "$$$" | "$$$$",
  "specialties": ["string"],
  "current_location": {"address": "string", "city": "string", "state": "string", "zip_code": "string", "lat": number, "lng": number, "raw_text": "string"},
  "operating_hours": {"monday": {"open": "HH:MM", "close": "HH:MM", "closed": false}, ... for all seven days},
  "menu": [{"category": "string", "items": [{"name": "string", "description": "string", "price": number, "dietary_tags": ["string"]}]}],
  "contact_info": {"phone": "string", "email": "string", "website": "string"},
  "social_media": {"instagram": "string", "facebook": "string", "twitter": "string", "tiktok": "string", "yelp": "string"}
}

Rules:
- Omit fields that are not present on the page; never invent values.
- Use 24-hour times and numeric prices (12.99, not "$12.99").
- Set lat/lng only when explicitly stated on the page.
- Return only the json, no additional text`, sourceURL, truncateContent(markdown))
}

// BuildMenuPrompt asks for a structured menu from raw menu text.
func BuildMenuPrompt(rawMenuText string) string {
	return fmt.Sprintf(`Parse the following food truck menu text and return a structured JSON format.
Extract menu items with categories, names, descriptions, prices, and dietary tags.

Menu text:
%s

Expected JSON format:
[
  {
    "category": "string",
    "items": [{"name": "string", "description": "string", "price": number, "dietary_tags": ["string"]}]
  }
]

Rules:
- Extract actual prices as numbers (e.g., 12.99, not "$12.99")
- Group items into logical categories; if none are clear, use "Main Items"
- Return only the json, no additional text`, truncateContent(rawMenuText))
}

// BuildLocationPrompt asks for location details from free-form text.
func BuildLocationPrompt(textInput string) string {
	return fmt.Sprintf(`Extract location information from the following text and return structured data.
Look for addresses, cross streets, landmarks, or location descriptions.

Text:
%s

Expected JSON format:
{"address": "string", "city": "string", "state": "string", "zip_code": "string", "lat": number, "lng": number, "raw_text": "string"}

Rules:
- Omit lat/lng unless coordinates are explicitly provided
- Return only the json, no additional text`, truncateContent(textInput))
}

// BuildHoursPrompt asks for standardized weekly operating hours.
func BuildHoursPrompt(hoursText string) string {
	return fmt.Sprintf(`Parse the following operating hours text and return a standardized format.
Convert all times to 24-hour format and handle various input formats.

Hours text:
%s

Expected JSON format:
{"monday": {"open": "HH:MM", "close": "HH:MM", "closed": false}, "tuesday": {...}, "wednesday": {...}, "thursday": {...}, "friday": {...}, "saturday": {...}, "sunday": {...}}

Rules:
- Use 24-hour format (e.g., "14:30" for 2:30 pm)
- If closed on a day, set "closed": true and omit open/close times
- Handle ranges like "Mon-Fri" by applying to all days in the range
- Return only the json, no additional text`, truncateContent(hoursText))
}

// BuildSentimentPrompt asks for review sentiment with per-aspect scores.
func BuildSentimentPrompt(reviewText string) string {
	return fmt.Sprintf(`Analyze the sentiment of this food truck review and extract key insights.
Focus on food quality, service, value, and overall experience.

Review text:
%s

Expected JSON format:
{"score": number, "confidence": number, "aspects": {"food_quality": number, "service": number, "value": number, "overall": number}, "summary": "string", "keywords": ["string"]}

Rules:
- Score should be 0.0 (very negative) to 1.0 (very positive)
- Summary should be 1-2 sentences max
- Return only the json, no additional text`, truncateContent(reviewText))
}
