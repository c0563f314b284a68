package validator

// Validator checks structs against their validation tags.
type Validator interface {
	// Validate returns nil when data passes all rules, or an error describing
	// the failed fields.
	Validate(data any) error
}
