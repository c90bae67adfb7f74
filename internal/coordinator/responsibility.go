package coordinator

import "sort"

// IsResponsible implements spec.md §4.6's responsibility rule: the local
// peer is responsible for a task announced with clock_head iff its hamming
// distance to the head is less than or equal to every known peer's
// distance, ties broken by lexicographically smaller peer id.
func IsResponsible(localPeerID string, knownPeers []string, clockHead ClockHead) bool {
	return electResponsible(localPeerID, knownPeers, clockHead) == localPeerID
}

// electResponsible returns the peer id that is responsible for clockHead
// among localPeerID and knownPeers.
func electResponsible(localPeerID string, knownPeers []string, clockHead ClockHead) string {
	candidates := append([]string{localPeerID}, knownPeers...)
	normHead := normalize(string(clockHead))

	type scored struct {
		id   string
		dist int
	}
	scoredPeers := make([]scored, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, id := range candidates {
		if seen[id] {
			continue
		}
		seen[id] = true
		scoredPeers = append(scoredPeers, scored{id: id, dist: hamming(normalize(id), normHead)})
	}

	sort.Slice(scoredPeers, func(i, j int) bool {
		if scoredPeers[i].dist != scoredPeers[j].dist {
			return scoredPeers[i].dist < scoredPeers[j].dist
		}
		return scoredPeers[i].id < scoredPeers[j].id
	})
	return scoredPeers[0].id
}

// NextResponsible returns the peer that would take over responsibility if
// excluded is removed from consideration — the failover path spec.md §4.6
// describes for a responsible peer that misses its heartbeat window.
func NextResponsible(localPeerID string, knownPeers []string, clockHead ClockHead, excluded string) string {
	filtered := make([]string, 0, len(knownPeers))
	for _, p := range knownPeers {
		if p != excluded {
			filtered = append(filtered, p)
		}
	}
	if localPeerID == excluded {
		if len(filtered) == 0 {
			return localPeerID
		}
		return electResponsible(filtered[0], filtered[1:], clockHead)
	}
	return electResponsible(localPeerID, filtered, clockHead)
}
