package cloud

// taskList is the response of the task listing endpoint.
type taskList struct {
	Total int       `json:"total"`
	Hits  []taskHit `json:"hits"`
}

type taskHit struct {
	ID               int64        `json:"id"`
	Title            string       `json:"title"`
	Cover            string       `json:"cover"`
	Status           int          `json:"status"`
	StartTime        string       `json:"startTime"`
	EndTime          string       `json:"endTime"`
	Weight           float64      `json:"weight"`
	Length           float64      `json:"length"`
	DeviceID         string       `json:"deviceId"`
	DeviceModel      string       `json:"deviceModel"`
	BedType          string       `json:"bedType"`
	AMSDetailMapping []amsMapping `json:"amsDetailMapping"`
}

// amsMapping is one slot's share of a task. Ams is the global slot index.
type amsMapping struct {
	Ams          int     `json:"ams"`
	FilamentID   string  `json:"filamentId"`
	FilamentType string  `json:"filamentType"`
	SourceColor  string  `json:"sourceColor"`
	Weight       float64 `json:"weight"`
}
