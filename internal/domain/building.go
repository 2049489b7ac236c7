package domain

type EntityState string

const (
	StateActive   EntityState = "active"
	StateInactive EntityState = "inactive"
)

func (s EntityState) Valid() bool {
	return s == StateActive || s == StateInactive
}

type Building struct {
	ID          int64       `json:"id"`
	Number      string      `json:"number"`
	Description string      `json:"description"`
	State       EntityState `json:"state"`
}
