// Package backup posts the persisted state to the log channel as a JSON
// attachment.
package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/edgard/taskbot/internal/chat"
	apperrors "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/metrics"
)

// Source is the part of the store a backup reads.
type Source interface {
	Export() ([]byte, error)
	LogChannel() (string, bool)
}

type Backup struct {
	src     Source
	gw      chat.Gateway
	loc     *time.Location
	logger  *slog.Logger
	metrics metrics.Recorder
}

func New(src Source, gw chat.Gateway, loc *time.Location, logger *slog.Logger, rec metrics.Recorder) *Backup {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if loc == nil {
		loc = time.Local
	}
	return &Backup{
		src:     src,
		gw:      gw,
		loc:     loc,
		logger:  logger.With("component", "backup"),
		metrics: metrics.OrNoOp(rec),
	}
}

// Run sends the exported state as <unix>.json to the log channel.
func (b *Backup) Run(ctx context.Context, now time.Time) error {
	channelID, ok := b.src.LogChannel()
	if !ok {
		return apperrors.NewConfigMissingError("log channel")
	}

	data, err := b.src.Export()
	if err != nil {
		return apperrors.NewPersistenceError("failed to export state", err)
	}

	name := strconv.FormatInt(now.Unix(), 10) + ".json"
	msg := chat.OutgoingMessage{
		Embeds: []chat.Embed{{
			Title:     fmt.Sprintf("Data backup (%s)", now.In(b.loc).Format("2006-01-02 15:04")),
			Color:     chat.ColorDarkBlue,
			Timestamp: now,
		}},
		Files: []chat.File{{Name: name, ContentType: "application/json", Data: data}},
	}
	if _, err := b.gw.Send(ctx, channelID, msg); err != nil {
		return apperrors.NewPlatformError("failed to send backup", err)
	}

	b.metrics.BackupSent()
	b.logger.InfoContext(ctx, "Backup sent", "channel_id", channelID, "file", name, "bytes", len(data))
	return nil
}
