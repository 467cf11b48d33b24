package layout

import "strconv"

// PruneApp removes every trace of an app from l: the node entry keyed by
// its id and every edge with the app as source or target. Counters in the
// config are recomputed when tracked. It reports whether l changed.
func PruneApp(l *Layout, appID int64) bool {
	if l == nil {
		return false
	}
	id := strconv.FormatInt(appID, 10)

	changed := false
	if _, ok := l.NodesLayout[id]; ok {
		delete(l.NodesLayout, id)
		changed = true
	}

	kept := l.EdgesLayout[:0]
	for _, e := range l.EdgesLayout {
		src, tgt := e.Endpoints()
		if src == id || tgt == id {
			changed = true
			continue
		}
		kept = append(kept, e)
	}
	l.EdgesLayout = kept

	if changed {
		l.Recount()
	}
	return changed
}

// PruneEdge removes the edge with the given id from l and reports whether
// it was present.
func PruneEdge(l *Layout, edgeID string) bool {
	if l == nil {
		return false
	}
	changed := false
	kept := l.EdgesLayout[:0]
	for _, e := range l.EdgesLayout {
		if e.ID == edgeID {
			changed = true
			continue
		}
		kept = append(kept, e)
	}
	l.EdgesLayout = kept
	if changed {
		l.Recount()
	}
	return changed
}
