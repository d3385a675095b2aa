package core

// ComparatorDriver is the analog comparator used for back-EMF sensing.
// The negative input is wired to the virtual neutral point; the positive
// input is selected among the three phase terminals.
type ComparatorDriver interface {
	// Enable powers up the comparator
	Enable() error

	// Disable powers down the comparator
	Disable()

	// SelectInput routes the given phase terminal to the comparator
	SelectInput(p Phase)

	// Output returns true while the selected phase is above neutral
	Output() bool
}
