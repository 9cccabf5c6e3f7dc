package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/chatme/relay-server/internal/core"
	"github.com/chatme/relay-server/internal/proto"
	"github.com/chatme/relay-server/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client, err := h.awaitRegister(ctx, conn)
	if err != nil {
		h.closeWithStatus(conn, err)
		return
	}

	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	h.closeWithStatus(conn, err)
}

func (h *WSHandler) closeWithStatus(conn *websocket.Conn, err error) {
	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// awaitRegister consumes frames until a valid register arrives. Anything
// else gets a not_registered error frame; the connection stays open.
func (h *WSHandler) awaitRegister(ctx context.Context, conn *websocket.Conn) (*core.Client, error) {
	for {
		inbound, err := readInbound(ctx, conn)
		if err != nil {
			return nil, err
		}
		if inbound == nil {
			if err := writeError(ctx, conn, core.ErrCodeInvalidFrame, "unparsable frame"); err != nil {
				return nil, err
			}
			continue
		}

		if inbound.Type != proto.InboundTypeRegister {
			if err := writeError(ctx, conn, core.ErrCodeNotRegistered, "register first"); err != nil {
				return nil, err
			}
			continue
		}

		var reg proto.RegisterData
		if err := json.Unmarshal(inbound.Data, &reg); err != nil || strings.TrimSpace(reg.Username) == "" {
			if err := writeError(ctx, conn, core.ErrCodeBadRequest, "username is required"); err != nil {
				return nil, err
			}
			continue
		}
		// Protocol is optional; when sent it must match. Omitting it keeps
		// older clients working.
		if reg.Protocol != 0 && reg.Protocol != proto.ProtocolVersion {
			if err := writeError(ctx, conn, core.ErrCodeBadRequest, "unsupported protocol version"); err != nil {
				return nil, err
			}
			continue
		}

		return core.NewClient(utils.NewID(), reg.Username), nil
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		inbound, err := readInbound(ctx, conn)
		if err != nil {
			return err
		}
		if inbound == nil {
			// Malformed frame: logged and dropped, connection stays open.
			h.log.Warn().Str("client_id", client.ID).Msg("dropping unparsable frame")
			if err := writeError(ctx, conn, core.ErrCodeInvalidFrame, "unparsable frame"); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr := inboundToCommand(*inbound)
		if protoErr != nil {
			if err := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); err != nil {
				return err
			}
			continue
		}
		client.Commands <- cmd
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// readInbound reads one frame. A transport error is returned; a frame
// that fails to parse yields (nil, nil) so the caller can drop it.
func readInbound(ctx context.Context, conn *websocket.Conn) (*proto.Inbound, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	var inbound proto.Inbound
	if err := json.Unmarshal(data, &inbound); err != nil {
		return nil, nil
	}
	return &inbound, nil
}

func writeError(ctx context.Context, conn *websocket.Conn, code, msg string) error {
	return wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	})
}
