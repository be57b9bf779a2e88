package enums

// PostRunStatus records the outcome of a single trigger attempt.
type PostRunStatus string

const (
	PostRunStatusSuccess PostRunStatus = "success"
	PostRunStatusFailed  PostRunStatus = "failed"
)

// String implements fmt.Stringer.
func (s PostRunStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s PostRunStatus) IsValid() bool {
	return s == PostRunStatusSuccess || s == PostRunStatusFailed
}
