package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	noteRef string
	query   string
	dryRun  *bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithNote restricts the sync run to a single note, given by GUID or note
// link.
func WithNote(ref string) Option {
	return func(a *application) {
		a.noteRef = ref
	}
}

// WithQuery overrides the configured note search query.
func WithQuery(query string) Option {
	return func(a *application) {
		a.query = query
	}
}

// WithDryRun overrides the configured dry-run setting.
func WithDryRun(v bool) Option {
	return func(a *application) {
		a.dryRun = &v
	}
}
