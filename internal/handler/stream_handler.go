package handler

import (
	"bufio"
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"taskhub-notify/internal/domain"
	"taskhub-notify/internal/logging"
	"taskhub-notify/internal/middleware"
	"taskhub-notify/internal/service/stream"
)

type StreamHandler struct {
	baseCtx       context.Context
	publisher     *stream.Publisher
	probeInterval time.Duration
	logger        zerolog.Logger
}

// NewStreamHandler ties every stream to baseCtx; cancelling it ends all open
// streams, which is how shutdown drains them.
func NewStreamHandler(baseCtx context.Context, publisher *stream.Publisher, probeInterval time.Duration, logger zerolog.Logger) *StreamHandler {
	if probeInterval <= 0 {
		probeInterval = 2 * time.Second
	}
	return &StreamHandler{
		baseCtx:       baseCtx,
		publisher:     publisher,
		probeInterval: probeInterval,
		logger:        logging.WithComponent(logger, "sse"),
	}
}

func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancelCause(h.baseCtx)
		defer cancel(nil)

		out := newSSEWriter(w)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.probe(ctx, cancel, out)
		}()

		res := h.publisher.Run(ctx, userID, out)
		cancel(nil)
		wg.Wait()

		h.logger.Info().
			Str("user_id", userID.String()).
			Str("reason", res.Reason).
			Int("iterations", res.Iterations).
			Int("delivered", res.Delivered).
			Msg("notification stream closed")
	}))

	return nil
}

// probe detects a vanished client between polls.
func (h *StreamHandler) probe(ctx context.Context, cancel context.CancelCauseFunc, out *sseWriter) {
	ticker := time.NewTicker(h.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := out.ping(); err != nil {
				cancel(domain.ErrClientDisconnected)
				return
			}
		}
	}
}
