package negotiation

import "github.com/pion/webrtc/v4"

// hintQueue buffers remote ICE candidates that arrive before the remote
// description is applied. Only Session.drainHints consumes it.
type hintQueue struct {
	items []webrtc.ICECandidateInit
}

func (q *hintQueue) push(h webrtc.ICECandidateInit) {
	q.items = append(q.items, h)
}

// pop removes and returns the oldest hint.
func (q *hintQueue) pop() (webrtc.ICECandidateInit, bool) {
	if len(q.items) == 0 {
		return webrtc.ICECandidateInit{}, false
	}
	h := q.items[0]
	q.items[0] = webrtc.ICECandidateInit{}
	q.items = q.items[1:]
	return h, true
}

func (q *hintQueue) len() int {
	return len(q.items)
}

func (q *hintQueue) reset() {
	q.items = nil
}
