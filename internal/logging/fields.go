package logging

// Canonical attribute keys. Stages and commands must use these rather than
// ad-hoc strings so console grouping and JSON consumers stay stable.
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldCamera    = "camera"
	FieldStage     = "stage"
	FieldFrame     = "frame"
	FieldInput     = "input"
	FieldOutput    = "output"
	FieldDuration  = "duration"
	FieldError     = "error"
)
