// Command ws_smoke drives two websocket clients through a chat exchange and
// a full call handshake against a running relay server. The callee buffers
// ICE candidates that arrive before the offer, the way a real endpoint
// queues candidates until the remote description is applied.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/chatme/relay-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	caller := flag.String("caller", "smoke-alice", "caller username")
	callee := flag.String("callee", "smoke-bob", "callee username")
	text := flag.String("text", "hello from smoke test", "chat message to send before calling")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	callerConn, err := dialAndRegister(ctx, *addr, *caller)
	if err != nil {
		return err
	}
	defer callerConn.Close(websocket.StatusNormalClosure, "bye")

	calleeConn, err := dialAndRegister(ctx, *addr, *callee)
	if err != nil {
		return err
	}
	defer calleeConn.Close(websocket.StatusNormalClosure, "bye")

	if err := sendFrame(ctx, callerConn, proto.InboundTypeChat, proto.ChatData{To: *callee, Body: *text}); err != nil {
		return err
	}
	msgFrame, err := awaitFrame(ctx, calleeConn, proto.OutboundTypeMessage)
	if err != nil {
		return err
	}
	var msg proto.MessageData
	if err := json.Unmarshal(msgFrame.Data, &msg); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}
	fmt.Printf("chat delivered: from=%s body=%q ts=%d\n", msg.From, msg.Body, msg.TS)

	// The sender gets an echo carrying the authoritative timestamp.
	if _, err := awaitFrame(ctx, callerConn, proto.OutboundTypeMessage); err != nil {
		return err
	}

	if err := sendFrame(ctx, calleeConn, proto.InboundTypeChat, proto.ChatData{
		To:      "smoke-room",
		Body:    "group " + *text,
		IsGroup: true,
	}); err != nil {
		return err
	}
	groupFrame, err := awaitFrame(ctx, callerConn, proto.OutboundTypeMessage)
	if err != nil {
		return err
	}
	var groupMsg proto.MessageData
	if err := json.Unmarshal(groupFrame.Data, &groupMsg); err != nil {
		return fmt.Errorf("unmarshal group message: %w", err)
	}
	fmt.Printf("group chat delivered: to=%s from=%s body=%q\n", groupMsg.To, groupMsg.From, groupMsg.Body)

	if err := sendFrame(ctx, callerConn, proto.InboundTypeCallOffer, proto.CallOfferData{
		To:    *callee,
		Offer: json.RawMessage(`{"type":"offer","sdp":"smoke"}`),
	}); err != nil {
		return err
	}
	// Fire a candidate right behind the offer so the callee has to queue it.
	if err := sendFrame(ctx, callerConn, proto.InboundTypeIceCandidate, proto.IceCandidateData{
		To:        *callee,
		Candidate: json.RawMessage(`{"candidate":"candidate:0 1 udp 1 127.0.0.1 9 typ host"}`),
	}); err != nil {
		return err
	}

	callID, pending, err := awaitOfferBufferingCandidates(ctx, calleeConn, *caller)
	if err != nil {
		return err
	}
	fmt.Printf("offer received: callId=%s buffered-candidates=%d\n", callID, len(pending))

	if err := sendFrame(ctx, calleeConn, proto.InboundTypeCallAnswer, proto.CallAnswerData{
		To:     *caller,
		CallID: callID,
		Answer: json.RawMessage(`{"type":"answer","sdp":"smoke"}`),
	}); err != nil {
		return err
	}
	// Remote description is "applied"; drain the queue.
	for _, cand := range pending {
		fmt.Printf("applying buffered candidate: %s\n", cand)
	}

	answerFrame, err := awaitFrame(ctx, callerConn, proto.OutboundTypeCallAnswer)
	if err != nil {
		return err
	}
	var answer proto.CallAnswerEvent
	if err := json.Unmarshal(answerFrame.Data, &answer); err != nil {
		return fmt.Errorf("unmarshal answer: %w", err)
	}
	fmt.Printf("answer received: from=%s callId=%s\n", answer.From, answer.CallID)

	if err := sendFrame(ctx, callerConn, proto.InboundTypeCallEnd, proto.CallControlData{
		To:     *callee,
		CallID: callID,
	}); err != nil {
		return err
	}
	endedFrame, err := awaitFrame(ctx, calleeConn, proto.OutboundTypeCallEnded)
	if err != nil {
		return err
	}
	var ended proto.CallEndedEvent
	if err := json.Unmarshal(endedFrame.Data, &ended); err != nil {
		return fmt.Errorf("unmarshal ended: %w", err)
	}
	fmt.Printf("call ended: from=%s reason=%s\n", ended.From, ended.Reason)
	return nil
}

func dialAndRegister(ctx context.Context, addr, username string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", username, err)
	}

	if err := sendFrame(ctx, conn, proto.InboundTypeRegister, proto.RegisterData{Username: username}); err != nil {
		conn.Close(websocket.StatusInternalError, "register failed")
		return nil, err
	}
	if _, err := awaitFrame(ctx, conn, proto.OutboundTypeRegistered); err != nil {
		conn.Close(websocket.StatusInternalError, "register failed")
		return nil, fmt.Errorf("register %s: %w", username, err)
	}
	fmt.Printf("registered: %s\n", username)
	return conn, nil
}

func sendFrame(ctx context.Context, conn *websocket.Conn, frameType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", frameType, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: frameType, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", frameType, err)
	}
	return nil
}

type rawFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func readFrame(ctx context.Context, conn *websocket.Conn) (rawFrame, error) {
	var frame rawFrame
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		return frame, fmt.Errorf("read: %w", err)
	}
	if frame.Error != nil {
		return frame, fmt.Errorf("server error: %s: %s", frame.Error.Code, frame.Error.Msg)
	}
	return frame, nil
}

func awaitFrame(ctx context.Context, conn *websocket.Conn, frameType string) (rawFrame, error) {
	for {
		frame, err := readFrame(ctx, conn)
		if err != nil {
			return frame, err
		}
		if frame.Type == frameType {
			return frame, nil
		}
		fmt.Printf("skipping frame: type=%s\n", frame.Type)
	}
}

// awaitOfferBufferingCandidates waits for the call offer while queueing any
// ICE candidates that race ahead of it.
func awaitOfferBufferingCandidates(ctx context.Context, conn *websocket.Conn, from string) (string, []json.RawMessage, error) {
	var pending []json.RawMessage
	for {
		frame, err := readFrame(ctx, conn)
		if err != nil {
			return "", nil, err
		}
		switch frame.Type {
		case proto.OutboundTypeIceCandidate:
			var cand proto.IceCandidateEvent
			if err := json.Unmarshal(frame.Data, &cand); err != nil {
				return "", nil, fmt.Errorf("unmarshal candidate: %w", err)
			}
			pending = append(pending, cand.Candidate)
		case proto.OutboundTypeCallOffer:
			var offer proto.CallOfferEvent
			if err := json.Unmarshal(frame.Data, &offer); err != nil {
				return "", nil, fmt.Errorf("unmarshal offer: %w", err)
			}
			if offer.From != from {
				return "", nil, fmt.Errorf("offer from unexpected user %s", offer.From)
			}
			return offer.CallID, pending, nil
		default:
			fmt.Printf("skipping frame: type=%s\n", frame.Type)
		}
	}
}
