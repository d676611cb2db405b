package live

// RunState carries the per-process memo maps: resolved channel references,
// uploads-playlist IDs, and the "known live" candidates from the previous
// discovery. It is owned by one Runner, lives for the process, and is never
// persisted; a restart starts cold.
type RunState struct {
	channelIDs map[string]string   // raw reference → canonical channel ID
	uploads    map[string]string   // channel ID → uploads playlist ID
	knownLive  map[string][]string // channel ID → video IDs live at last check
}

// NewRunState returns empty memo maps.
func NewRunState() *RunState {
	return &RunState{
		channelIDs: make(map[string]string),
		uploads:    make(map[string]string),
		knownLive:  make(map[string][]string),
	}
}
