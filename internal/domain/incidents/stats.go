package incidents

// EngagementStats counts confirmations and denials of an incident.
// ConsecutiveDenies is the deny streak since the last confirm and never exceeds Denies.
type EngagementStats struct {
	Confirms          uint `json:"confirms"`
	Denies            uint `json:"denies"`
	ConsecutiveDenies uint `json:"consecutive_denies"`
}

func (s EngagementStats) AddConfirm() EngagementStats {
	return EngagementStats{
		Confirms:          s.Confirms + 1,
		Denies:            s.Denies,
		ConsecutiveDenies: 0,
	}
}

func (s EngagementStats) AddDeny() EngagementStats {
	return EngagementStats{
		Confirms:          s.Confirms,
		Denies:            s.Denies + 1,
		ConsecutiveDenies: s.ConsecutiveDenies + 1,
	}
}

// Valid reports whether the streak invariant holds.
func (s EngagementStats) Valid() bool {
	return s.ConsecutiveDenies <= s.Denies
}
