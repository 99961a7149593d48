package timeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/classline/classline/internal/models"
	"github.com/classline/classline/internal/observability"
)

// Send builds a message in the sending state, appends it optimistically,
// refreshes the owning chat's preview and position, dispatches the message to
// the remote service, and schedules the local acknowledgement timers. Each
// timer is scheduled relative to the original send, so they always fire in
// increasing status order. A send failure never reverts the optimistic
// append; the message stays visible and the loss is logged.
func (s *Store) Send(ctx context.Context, conversationID, text string, attachments []models.Attachment, sender *models.User) *models.Message {
	now := s.now()
	message := &models.Message{
		ID:           uuid.NewString(),
		Text:         text,
		SenderID:     sender.ID,
		SenderName:   sender.Name,
		SenderAvatar: sender.Avatar,
		Timestamp:    now,
		Attachments:  append([]models.Attachment(nil), attachments...),
		Status:       models.StatusSending,
	}

	s.Append(conversationID, message)

	if s.dir != nil {
		s.dir.UpdatePreview(conversationID, message.Preview(), now)
		if chat, _, ok := s.dir.OwningChat(conversationID); ok {
			s.dir.MoveAfterPinned(chat.ID)
		}
	}

	s.scheduleAdvance(conversationID, message.ID, models.StatusSent, s.delays.Sent)
	s.scheduleAdvance(conversationID, message.ID, models.StatusDelivered, s.delays.Delivered)
	s.scheduleAdvance(conversationID, message.ID, models.StatusRead, s.delays.Read)

	if s.archive != nil {
		if err := s.archive.Append(ctx, conversationID, message); err != nil {
			s.logger.Warn().Err(err).Str("message_id", message.ID).Msg("archive write failed")
		}
	}

	if s.sender != nil {
		go s.dispatch(conversationID, message.Clone())
	}

	return message.Clone()
}

// Confirm applies a genuine server acknowledgement, short-circuiting the
// local timers. The status never moves backward.
func (s *Store) Confirm(conversationID, messageID string, status models.MessageStatus) {
	s.UpdateStatus(conversationID, messageID, status)
}

func (s *Store) scheduleAdvance(conversationID, messageID string, status models.MessageStatus, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.UpdateStatus(conversationID, messageID, status)
	})
}

func (s *Store) dispatch(conversationID string, message *models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.sender.PostMessage(ctx, conversationID, message); err != nil {
		// Message loss is possible here; keep the optimistic state and log.
		s.logger.Error().Err(err).
			Str("conversation_id", conversationID).
			Str("message_id", message.ID).
			Msg("message dispatch failed")
		observability.CaptureErr(err)
		return
	}
	s.Confirm(conversationID, message.ID, models.StatusSent)
}
