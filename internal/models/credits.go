package models

// CreditBalance is the caller's video quota.
type CreditBalance struct {
	ID        int64    `json:"id,omitempty"`
	Consumed  int      `json:"videosConsumidos"`
	Available int      `json:"videosDisponibles"`
	User      *UserRef `json:"user,omitempty"`
}

// Remaining returns the number of videos the caller may still generate.
func (b CreditBalance) Remaining() int {
	if n := b.Available - b.Consumed; n > 0 {
		return n
	}
	return 0
}

// HasCapacity reports whether at least one more video may be generated.
func (b CreditBalance) HasCapacity() bool {
	return b.Remaining() > 0
}
