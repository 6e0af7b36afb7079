package reminder

// Status is the single lifecycle state derived from the persisted flags.
type Status int

const (
	StatusActive Status = iota
	StatusPaused
	StatusCancelled
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	case StatusCancelled:
		return "cancelled"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// MarshalText lets Status render as a string in JSON responses.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Status folds the flags into one state. Legacy data may carry several flags
// at once: deleted wins, then cancelled, then paused.
func (r Reminder) Status() Status {
	switch {
	case r.IsDeleted:
		return StatusDeleted
	case r.IsCancelled:
		return StatusCancelled
	case r.IsPaused:
		return StatusPaused
	default:
		return StatusActive
	}
}

// Transition moves the reminder to target.
//
// Allowed: active<->paused, active/paused->cancelled, any->deleted.
// Re-applying the current state is a no-op (changed=false). Deleted is terminal.
func (r *Reminder) Transition(target Status) (changed bool, err error) {
	from := r.Status()
	if from == target {
		return false, nil
	}
	if !canTransition(from, target) {
		return false, newTransitionError(r.ID, from, target)
	}
	switch target {
	case StatusActive:
		r.IsPaused = false
	case StatusPaused:
		r.IsPaused = true
	case StatusCancelled:
		r.IsCancelled = true
	case StatusDeleted:
		r.IsDeleted = true
	}
	return true, nil
}

func canTransition(from, to Status) bool {
	switch from {
	case StatusActive:
		return to == StatusPaused || to == StatusCancelled || to == StatusDeleted
	case StatusPaused:
		return to == StatusActive || to == StatusCancelled || to == StatusDeleted
	case StatusCancelled:
		return to == StatusDeleted
	default:
		return false
	}
}
