package lease

// Config holds the connection settings for the Redis lease backend.
// An empty Address selects the in-process locker.
type Config struct {
	// Address is the Redis host:port.
	Address string `mapstructure:"address" default:""`
	// Password is the Redis AUTH password.
	Password string `mapstructure:"password" default:""`
	// DB is the Redis logical database.
	DB int `mapstructure:"db" default:"0"`
}

// Enabled reports whether a Redis backend is configured.
func (c Config) Enabled() bool {
	return c.Address != ""
}
