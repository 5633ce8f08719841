package ir

// NOTE: These are store-layer records, not part of the layout IR.
// Route IDs are UUIDv7 and local to one PET; RouteKey is structural and
// identical on every PET.

// RouteRecord summarises one bound route on one PET.
type RouteRecord struct {
	ID          string `json:"id"`
	RouteKey    string `json:"route_key"`
	Op          string `json:"op"`
	PET         int    `json:"pet"`
	Options     int    `json:"options"`
	Kind        string `json:"kind"`
	SendEntries int    `json:"send_entries"`
	RecvEntries int    `json:"recv_entries"`
	SendItems   int    `json:"send_items"`
	RecvItems   int    `json:"recv_items"`
	Rounds      int    `json:"rounds"`
	Schedule    string `json:"schedule,omitempty"` // commtable dump
	Seq         int64  `json:"seq"`                // Logical clock
}

// RunRecord records one Run call of a route.
type RunRecord struct {
	ID        int64  `json:"id"` // Auto-increment (store FK)
	RouteID   string `json:"route_id"`
	Seq       int64  `json:"seq"`
	BytesSent int64  `json:"bytes_sent"`
	BytesRecv int64  `json:"bytes_recv"`
	Messages  int64  `json:"messages"`
	Status    string `json:"status"` // "ok" or an error code
}
