package identity

// namedProvider wraps a single Logger so it can serve as a LoggerProvider.
type namedProvider struct {
	logger Logger
}

func (p namedProvider) GetLogger(string) Logger {
	return p.logger
}

// ResolveLogger resolves the provider and logger a component should use.
// An explicit override wins, then the provider's named channel, then the
// package default. The returned provider is never nil so components can
// re-resolve when their configuration changes.
func ResolveLogger(name string, provider LoggerProvider, override Logger) (LoggerProvider, Logger) {
	if override != nil {
		if provider == nil {
			provider = namedProvider{logger: override}
		}
		return provider, override
	}

	if provider != nil {
		if logger := provider.GetLogger(name); logger != nil {
			return provider, logger
		}
	}

	def := defLogger{}
	if provider == nil {
		provider = namedProvider{logger: def}
	}
	return provider, def
}
