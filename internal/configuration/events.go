package configuration

type EventConfig struct {
	ID string `json:"id"`

	// Groups maps an event name (f.ex. "FanFault") to the fault source
	// files that feed it. The combined Functional flag of the event is
	// false while any source of any group asserts.
	Groups map[string][]string `json:"groups"`
}
