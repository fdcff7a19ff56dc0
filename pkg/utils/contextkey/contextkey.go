package contextkey

// key is a private type to avoid context key collisions across packages.
type key string

const (
	SubmissionID key = "submission_id"
	RuntimeName  key = "runtime_name"
)
