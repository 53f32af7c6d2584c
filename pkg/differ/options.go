package differ

// Option is a functional option for configuring Differ.
type Option func(*differ)

// WithIgnoredFields sets record fields to ignore when detecting updates.
func WithIgnoredFields(fields ...string) Option {
	return func(d *differ) {
		for _, field := range fields {
			d.ignoreFields[field] = true
		}
	}
}

// WithDeepComparison enables or disables content comparison of retained items.
// Without it retained items are never reported as updated.
func WithDeepComparison(enabled bool) Option {
	return func(d *differ) {
		d.deepComparison = enabled
	}
}
