package domain

// TabDefinition declares one panel tab provided by a ruleset.
type TabDefinition struct {
	Key          string
	ID           string
	Localization string
}

// SystemAdapter describes how a ruleset projects actors for display.
//
// ActorDetails may fail for individual actors; Compute isolates those
// failures. Update sees the complete projected list and may reorder or
// annotate it and return extra top-level view fields.
type SystemAdapter interface {
	ID() string
	ActorDetails(actor Actor) (Details, error)
	Update(actors []ActorRecord) ([]ActorRecord, map[string]any)
	Tabs() []TabDefinition
	Width() int
	Template() string
}
