package reservations

// Config holds configuration for the reservation source API.
type Config struct {
	// BaseURL is the reservation API root.
	BaseURL string `mapstructure:"base_url" default:""`
	// ApiToken is the fallback bearer token when the settings table has none.
	ApiToken string `mapstructure:"api_token" default:""`
	// PageSize is the number of reservations requested per page.
	PageSize int `mapstructure:"page_size" default:"50"`
	// MaxPages stops pagination on a source that never reports the last page.
	MaxPages int `mapstructure:"max_pages" default:"100"`
	// TimeoutSeconds bounds each HTTP call.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
