package channel

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogSender writes the payload to the log and reports success. It is the
// default for every channel when no provider is configured.
type LogSender struct {
	log zerolog.Logger
	now func() time.Time
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log, now: time.Now}
}

func (s *LogSender) Send(ctx context.Context, msg Message) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	id := uuid.NewString()
	s.log.Info().
		Str("channel", string(msg.Channel)).
		Str("destination", msg.Destination).
		Str("reference", msg.Reference).
		Str("message_id", id).
		Str("subject", msg.Subject).
		Msg("dispatch (dry run)")

	return Outcome{Success: true, MessageID: id, At: s.now()}, nil
}
