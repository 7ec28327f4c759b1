package ports

// RandomStream is the single ordered source of uniform draws shared by a
// filling pass. container.SeededStream builds one from the configured seed.
type RandomStream interface {
	// Float64 returns a uniform draw in [0,1)
	Float64() float64
}
