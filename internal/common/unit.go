package common

// Unit is the empty struct used as a set member value.
type Unit struct{}
