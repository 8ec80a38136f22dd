// Package discovery is the static API catalog: which external services
// exist, how they authenticate, and which one best fits a task.
package discovery

// Category buckets catalog entries.
type Category string

const (
	CategoryTravel        Category = "travel"
	CategoryFinance       Category = "finance"
	CategoryCommunication Category = "communication"
	CategoryProductivity  Category = "productivity"
	CategoryFood          Category = "food"
	CategoryTransport     Category = "transport"
	CategoryWeather       Category = "weather"
	CategoryAI            Category = "ai"
)

// APIInfo describes one external service.
type APIInfo struct {
	Key           string   `json:"key"`
	Name          string   `json:"name"`
	Provider      string   `json:"provider"`
	Description   string   `json:"description"`
	Category      Category `json:"category"`
	AuthType      string   `json:"auth_type"` // oauth, api_key, none
	OAuthProvider string   `json:"oauth_provider,omitempty"`
	BaseURL       string   `json:"base_url,omitempty"`
	DocsURL       string   `json:"docs_url,omitempty"`
	Scopes        []string `json:"scopes,omitempty"`
}

// knownAPIs would be backed by a registry in production; a static table
// covers the launch surface.
var knownAPIs = map[string]APIInfo{
	"gmail": {
		Key: "gmail", Name: "Gmail API", Provider: "google",
		Description: "Read, send, and manage email",
		Category:    CategoryCommunication, AuthType: "oauth", OAuthProvider: "google",
		BaseURL: "https://gmail.googleapis.com",
		DocsURL: "https://developers.google.com/gmail/api",
		Scopes: []string{
			"https://www.googleapis.com/auth/gmail.readonly",
			"https://www.googleapis.com/auth/gmail.send",
		},
	},
	"google_calendar": {
		Key: "google_calendar", Name: "Google Calendar API", Provider: "google",
		Description: "Manage calendar events and schedules",
		Category:    CategoryProductivity, AuthType: "oauth", OAuthProvider: "google",
		BaseURL: "https://www.googleapis.com/calendar/v3",
		DocsURL: "https://developers.google.com/calendar",
		Scopes:  []string{"https://www.googleapis.com/auth/calendar"},
	},
	"google_drive": {
		Key: "google_drive", Name: "Google Drive API", Provider: "google",
		Description: "Store and access files",
		Category:    CategoryProductivity, AuthType: "oauth", OAuthProvider: "google",
		BaseURL: "https://www.googleapis.com/drive/v3",
		DocsURL: "https://developers.google.com/drive",
		Scopes:  []string{"https://www.googleapis.com/auth/drive"},
	},
	"booking": {
		Key: "booking", Name: "Booking.com", Provider: "booking",
		Description: "Search and book hotels worldwide",
		Category:    CategoryTravel, AuthType: "api_key",
		BaseURL: "https://distribution-xml.booking.com",
		DocsURL: "https://developers.booking.com",
	},
	"hotels_com": {
		Key: "hotels_com", Name: "Hotels.com", Provider: "hotels_com",
		Description: "Hotel search and booking",
		Category:    CategoryTravel, AuthType: "api_key",
		BaseURL: "https://api.hotels.com",
		DocsURL: "https://developer.hotels.com",
	},
	"airbnb": {
		Key: "airbnb", Name: "Airbnb", Provider: "airbnb",
		Description: "Book vacation rentals and unique stays",
		Category:    CategoryTravel, AuthType: "oauth", OAuthProvider: "airbnb",
		BaseURL: "https://api.airbnb.com",
		DocsURL: "https://developer.airbnb.com",
	},
	"amadeus": {
		Key: "amadeus", Name: "Amadeus", Provider: "amadeus",
		Description: "Flight search, booking, and travel data",
		Category:    CategoryTravel, AuthType: "api_key",
		BaseURL: "https://api.amadeus.com",
		DocsURL: "https://developers.amadeus.com",
	},
	"skyscanner": {
		Key: "skyscanner", Name: "Skyscanner", Provider: "skyscanner",
		Description: "Compare flight prices across airlines",
		Category:    CategoryTravel, AuthType: "api_key",
		BaseURL: "https://partners.api.skyscanner.net",
		DocsURL: "https://developers.skyscanner.net",
	},
	"kiwi": {
		Key: "kiwi", Name: "Kiwi.com", Provider: "kiwi",
		Description: "Flight search with flexible dates and routes",
		Category:    CategoryTravel, AuthType: "api_key",
		BaseURL: "https://api.tequila.kiwi.com",
		DocsURL: "https://tequila.kiwi.com/docs",
	},
	"rentalcars": {
		Key: "rentalcars", Name: "Rentalcars.com", Provider: "rentalcars",
		Description: "Car rental comparison and booking",
		Category:    CategoryTravel, AuthType: "api_key",
		BaseURL: "https://api.rentalcars.com",
		DocsURL: "https://developer.rentalcars.com",
	},
	"uber": {
		Key: "uber", Name: "Uber", Provider: "uber",
		Description: "Request rides",
		Category:    CategoryTransport, AuthType: "oauth", OAuthProvider: "uber",
		BaseURL: "https://api.uber.com",
		DocsURL: "https://developer.uber.com",
	},
	"lyft": {
		Key: "lyft", Name: "Lyft", Provider: "lyft",
		Description: "Request rides",
		Category:    CategoryTransport, AuthType: "oauth", OAuthProvider: "lyft",
		BaseURL: "https://api.lyft.com",
		DocsURL: "https://developer.lyft.com",
	},
	"stripe": {
		Key: "stripe", Name: "Stripe API", Provider: "stripe",
		Description: "Process payments",
		Category:    CategoryFinance, AuthType: "api_key",
		BaseURL: "https://api.stripe.com",
		DocsURL: "https://stripe.com/docs/api",
	},
	"plaid": {
		Key: "plaid", Name: "Plaid API", Provider: "plaid",
		Description: "Connect bank accounts",
		Category:    CategoryFinance, AuthType: "api_key",
		BaseURL: "https://plaid.com",
		DocsURL: "https://plaid.com/docs",
	},
	"slack": {
		Key: "slack", Name: "Slack API", Provider: "slack",
		Description: "Send messages and manage workspaces",
		Category:    CategoryCommunication, AuthType: "oauth", OAuthProvider: "slack",
		BaseURL: "https://slack.com/api",
		DocsURL: "https://api.slack.com",
	},
	"twilio": {
		Key: "twilio", Name: "Twilio API", Provider: "twilio",
		Description: "Send SMS and make calls",
		Category:    CategoryCommunication, AuthType: "api_key",
		BaseURL: "https://api.twilio.com",
		DocsURL: "https://www.twilio.com/docs",
	},
	"doordash": {
		Key: "doordash", Name: "DoorDash API", Provider: "doordash",
		Description: "Order food delivery",
		Category:    CategoryFood, AuthType: "oauth", OAuthProvider: "doordash",
		BaseURL: "https://api.doordash.com",
		DocsURL: "https://developer.doordash.com",
	},
	"ubereats": {
		Key: "ubereats", Name: "Uber Eats API", Provider: "uber",
		Description: "Order food delivery",
		Category:    CategoryFood, AuthType: "oauth", OAuthProvider: "uber",
		BaseURL: "https://api.uber.com/eats",
		DocsURL: "https://developer.uber.com",
	},
	"openweathermap": {
		Key: "openweathermap", Name: "OpenWeatherMap API", Provider: "openweathermap",
		Description: "Get weather data",
		Category:    CategoryWeather, AuthType: "api_key",
		BaseURL: "https://api.openweathermap.org",
		DocsURL: "https://openweathermap.org/api",
	},
	"openai": {
		Key: "openai", Name: "OpenAI API", Provider: "openai",
		Description: "AI text generation and analysis",
		Category:    CategoryAI, AuthType: "api_key",
		BaseURL: "https://api.openai.com",
		DocsURL: "https://platform.openai.com/docs",
	},
}

// taskKeywords routes common task phrasings to catalog keys.
var taskKeywords = map[string][]string{
	"email":   {"gmail"},
	"mail":    {"gmail"},
	"message": {"slack", "twilio"},
	"slack":   {"slack"},
	"sms":     {"twilio"},
	"text":    {"twilio"},

	"calendar":    {"google_calendar"},
	"schedule":    {"google_calendar"},
	"meeting":     {"google_calendar"},
	"appointment": {"google_calendar"},

	"hotel":         {"booking", "hotels_com"},
	"book hotel":    {"booking"},
	"accommodation": {"booking", "airbnb"},
	"airbnb":        {"airbnb"},
	"stay":          {"booking", "airbnb"},
	"lodging":       {"booking"},

	"flight":      {"amadeus", "skyscanner", "kiwi"},
	"fly":         {"amadeus", "skyscanner"},
	"book flight": {"amadeus"},
	"plane":       {"amadeus", "skyscanner"},
	"airline":     {"amadeus"},
	"travel":      {"amadeus", "booking"},
	"trip":        {"amadeus", "booking"},

	"car rental": {"rentalcars"},
	"rent car":   {"rentalcars"},
	"rental car": {"rentalcars"},

	"ride": {"uber", "lyft"},
	"taxi": {"uber", "lyft"},
	"uber": {"uber"},
	"lyft": {"lyft"},

	"payment": {"stripe"},
	"pay":     {"stripe"},
	"bank":    {"plaid"},

	"food":       {"doordash", "ubereats"},
	"delivery":   {"doordash", "ubereats"},
	"order food": {"doordash", "ubereats"},
	"restaurant": {"doordash"},

	"weather":  {"openweathermap"},
	"files":    {"google_drive"},
	"drive":    {"google_drive"},
	"document": {"google_drive"},
}
