package render

// Scope collects release functions and runs them in reverse order of
// acquisition. A zero Scope is ready to use.
type Scope struct {
	releases []func()
}

// Defer registers fn to run on Release.
func (s *Scope) Defer(fn func()) {
	s.releases = append(s.releases, fn)
}

// Len is the number of pending releases.
func (s *Scope) Len() int {
	return len(s.releases)
}

// Release runs every pending release, last acquired first. Releasing an empty
// scope does nothing.
func (s *Scope) Release() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
	s.releases = s.releases[:0]
}

// acquire runs create and registers release for its result when it succeeds.
func acquire[T any](s *Scope, create func() (T, error), release func(T)) (T, error) {
	v, err := create()
	if err != nil {
		return v, err
	}
	s.Defer(func() { release(v) })
	return v, nil
}
