package interceptor

import "github.com/rkvm-go/rkvm/internal/model"

// assembler holds the cancel-safe state an Interceptor.Read call must
// preserve across suspension: the in-progress report, any write-back
// interrupted mid-forward, and the post-SYN_DROPPED suppression flag.
// It is kept separate from device I/O so the translation rules in
// spec §4.1/§4.2 are testable without a real evdev node.
//
// events only becomes drainable once complete is set by a buffered
// Sync{All}: a report is held in full until it is terminated, so a
// SYN_DROPPED arriving mid-report can still discard it before any of
// its events have been handed to a caller.
type assembler struct {
	events   []model.Event
	complete bool
	writing  writeback
	dropped  bool
}

// resumeWriteback forwards a write-back interrupted by the previous
// Read call's cancellation, if any, via writeBack.
func (a *assembler) resumeWriteback(writeBack func(model.RawEvent) error) error {
	if !a.writing.pending {
		return nil
	}
	if err := writeBack(a.writing.raw); err != nil {
		return err
	}
	a.writing.pending = false
	return nil
}

// feed processes one raw event, appending to the in-progress report,
// forwarding a write-back, or applying the dropped-flag rules. It
// returns true once a complete, Sync{All}-terminated report is
// buffered and ready to drain — never on a merely non-empty,
// still-open report, so a SYN_DROPPED can still discard everything
// buffered so far.
func (a *assembler) feed(raw model.RawEvent, writeBack func(model.RawEvent) error) (ready bool, err error) {
	if a.dropped {
		if raw.Type == model.EvSyn && raw.Code == model.SynReport {
			a.dropped = false
		}
		return a.ready(), nil
	}

	ev, result := model.Translate(raw)
	switch result {
	case model.Mapped:
		a.events = append(a.events, ev)
	case model.ReportEnd:
		a.events = append(a.events, ev)
		a.complete = true
	case model.Dropped:
		a.events = nil
		a.complete = false
		a.dropped = true
	case model.WriteBack:
		a.writing = writeback{pending: true, raw: raw}
		if err := writeBack(raw); err != nil {
			return a.ready(), err
		}
		a.writing.pending = false
	}
	return a.ready(), nil
}

// ready reports whether the buffered report is complete (terminated by
// a buffered Sync{All}) and still has events left to drain.
func (a *assembler) ready() bool {
	return a.complete && len(a.events) > 0
}

// pop removes and returns the oldest buffered event. Callers must only
// call it when feed (or ready) last reported true. Draining the last
// event of a completed report clears complete, so the next report must
// again run to its own Sync{All} before anything is handed out.
func (a *assembler) pop() model.Event {
	head := a.events[0]
	a.events = a.events[1:]
	if len(a.events) == 0 {
		a.complete = false
	}
	return head
}
