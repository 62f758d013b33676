package session

import (
	"errors"

	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/transport"
)

// Subscriber is the part of the transport the remote-apply path needs.
type Subscriber interface {
	Subscribe(h transport.Handler) func()
}

// Attach subscribes the remote-apply path to bus and returns the
// unsubscribe function.
func (s *Store) Attach(bus Subscriber) func() {
	return bus.Subscribe(s.HandleEvent)
}

// HandleEvent applies an event received from the transport. Events that
// originate from this replica are skipped. Failures are logged, never
// returned: an unknown id usually means an earlier event was lost.
func (s *Store) HandleEvent(ev core.Event) {
	if ev.Origin != "" && ev.Origin == s.id {
		return
	}
	if err := s.applyRemote(ev); err != nil {
		if errors.Is(err, core.ErrNotFound) || errors.Is(err, ErrDuplicateID) {
			s.logger.Debug("Remote event skipped", "event_type", ev.Type, "event_id", ev.ID, "origin", ev.Origin, "error", err)
			return
		}
		s.logger.Warn("Remote event rejected", "event_type", ev.Type, "event_id", ev.ID, "origin", ev.Origin, "error", err)
	}
}

func (s *Store) applyRemote(ev core.Event) error {
	switch p := ev.Payload.(type) {
	case core.PresenceUpdate:
		s.presence.Update(p.UserID, p.Presence)
	case core.CursorUpdate:
		s.presence.SetCursor(p.UserID, p.Cursor)
	case core.SelectionUpdate:
		if p.BlockID == "" {
			s.ClearSelection(p.UserID)
			return nil
		}
		s.SetSelection(core.Selection{UserID: p.UserID, BlockID: p.BlockID, Mode: p.Mode})
	case core.DocOp:
		res, err := s.ApplyRemoteEdit(p.BlockID, p.Content, p.UserID, p.Version)
		if err != nil {
			return err
		}
		if res.Conflict != nil {
			s.logger.Debug("Remote edit diverted into conflict", "block_id", p.BlockID, "conflict_id", res.Conflict.ID)
		}
	case core.BlockTypeChange:
		_, err := s.SetBlockType(p.BlockID, p.Type)
		return err
	case core.BlockAdd:
		return s.InsertBlock(p.Block, p.AfterID)
	case core.Stroke:
		_, err := s.AddStroke(p)
		return err
	case core.StrokePoint:
		return s.AppendStrokePoint(p.StrokeID, p.Point)
	case core.Comment:
		_, err := s.AddComment(p)
		return err
	case core.CommentResolve:
		return s.ResolveComment(p.CommentID, p.Resolved)
	case core.CommentDelete:
		return s.DeleteComment(p.CommentID)
	case core.Conflict, core.ConflictResolved, core.ConnectionStatusChange:
		// conflicts and link state are replica-local
		s.logger.Debug("Remote informational event", "event_type", ev.Type, "origin", ev.Origin)
	default:
		return core.ErrUnknownEvent
	}
	return nil
}
