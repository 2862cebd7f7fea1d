package ui

// Config contains window and overlay settings.
type Config struct {
	Title   string // window title
	Scale   int    // integer upscaling factor
	ShowFPS bool   // draw the measured frame rate in the corner
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbemu"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
}
