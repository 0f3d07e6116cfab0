package corectx

// CoreContext is the single value constructed at process startup (spec §9,
// "Design Notes" — replacing process-global singletons for context,
// plugin factories and the like with one passed-in value). cmd/bst builds
// it once per invocation and passes the values it carries (cache
// directory, quota, resource limits, remotes) to each component's
// constructor; the components themselves do not take a *CoreContext.
//
// It deliberately does not embed context.Context: callers pass a
// context.Context alongside it on a per-call basis for cancellation and
// logging, keeping CoreContext itself a plain, comparable configuration
// value.
type CoreContext struct {
	Config Config
}

// New constructs a CoreContext from a loaded Config.
func New(cfg Config) *CoreContext {
	return &CoreContext{Config: cfg}
}
