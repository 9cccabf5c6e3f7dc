package http

import (
	"encoding/json"

	"github.com/chatme/relay-server/internal/core"
	"github.com/chatme/relay-server/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeRegister:
		var reg proto.RegisterData
		if err := json.Unmarshal(inbound.Data, &reg); err != nil {
			return nil, invalidFrame()
		}
		if reg.Username == "" {
			return nil, badRequest("username is required")
		}
		if reg.Protocol != 0 && reg.Protocol != proto.ProtocolVersion {
			return nil, badRequest("unsupported protocol version")
		}
		return &core.Command{Kind: core.CommandRegister, Username: reg.Username}, nil

	case proto.InboundTypeChat:
		var chat proto.ChatData
		if err := json.Unmarshal(inbound.Data, &chat); err != nil {
			return nil, invalidFrame()
		}
		if chat.To == "" {
			return nil, badRequest("to is required")
		}
		switch chat.Kind {
		case "", core.KindText, core.KindVoice, core.KindCallEvent:
		default:
			return nil, badRequest("unknown message kind")
		}
		return &core.Command{
			Kind: core.CommandSendChat,
			Message: core.Message{
				// From and CreatedAt are stamped by the hub.
				To:      chat.To,
				Body:    chat.Body,
				IsGroup: chat.IsGroup,
				Kind:    chat.Kind,
				Audio:   chat.Audio,
			},
		}, nil

	case proto.InboundTypeCallOffer:
		var offer proto.CallOfferData
		if err := json.Unmarshal(inbound.Data, &offer); err != nil {
			return nil, invalidFrame()
		}
		if offer.To == "" {
			return nil, badRequest("to is required")
		}
		if len(offer.Offer) == 0 {
			return nil, badRequest("offer is required")
		}
		return &core.Command{
			Kind: core.CommandCallOffer,
			Call: core.CallRequest{To: offer.To, IsGroup: offer.IsGroup, Payload: offer.Offer},
		}, nil

	case proto.InboundTypeCallAnswer:
		var answer proto.CallAnswerData
		if err := json.Unmarshal(inbound.Data, &answer); err != nil {
			return nil, invalidFrame()
		}
		if answer.CallID == "" {
			return nil, badRequest("callId is required")
		}
		return &core.Command{
			Kind: core.CommandCallAnswer,
			Call: core.CallRequest{To: answer.To, CallID: answer.CallID, Payload: answer.Answer},
		}, nil

	case proto.InboundTypeIceCandidate:
		var cand proto.IceCandidateData
		if err := json.Unmarshal(inbound.Data, &cand); err != nil {
			return nil, invalidFrame()
		}
		if cand.To == "" {
			return nil, badRequest("to is required")
		}
		return &core.Command{
			Kind: core.CommandIceCandidate,
			Call: core.CallRequest{To: cand.To, Payload: cand.Candidate},
		}, nil

	case proto.InboundTypeCallReject:
		var ctl proto.CallControlData
		if err := json.Unmarshal(inbound.Data, &ctl); err != nil {
			return nil, invalidFrame()
		}
		if ctl.CallID == "" {
			return nil, badRequest("callId is required")
		}
		return &core.Command{
			Kind: core.CommandCallReject,
			Call: core.CallRequest{To: ctl.To, CallID: ctl.CallID},
		}, nil

	case proto.InboundTypeCallEnd:
		var ctl proto.CallControlData
		if err := json.Unmarshal(inbound.Data, &ctl); err != nil {
			return nil, invalidFrame()
		}
		if ctl.CallID == "" {
			return nil, badRequest("callId is required")
		}
		return &core.Command{
			Kind: core.CommandCallEnd,
			Call: core.CallRequest{To: ctl.To, CallID: ctl.CallID},
		}, nil

	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidFrame, Msg: "unknown frame type"}
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRegistered:
		return proto.Outbound{
			Type: proto.OutboundTypeRegistered,
			Data: proto.RegisteredData{Username: event.User},
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Type: proto.OutboundTypeUserJoined,
			Data: proto.PresenceData{Username: event.User},
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Type: proto.OutboundTypeUserLeft,
			Data: proto.PresenceData{Username: event.User},
		}
	case core.EventMessage:
		return proto.Outbound{
			Type: proto.OutboundTypeMessage,
			Data: proto.MessageData{
				From:    event.Message.From,
				To:      event.Message.To,
				Body:    event.Message.Body,
				IsGroup: event.Message.IsGroup,
				Kind:    event.Message.Kind,
				Audio:   event.Message.Audio,
				TS:      event.Message.CreatedAt.UnixMilli(),
			},
		}
	case core.EventCallOffer:
		return proto.Outbound{
			Type: proto.OutboundTypeCallOffer,
			Data: proto.CallOfferEvent{
				From:    event.Call.From,
				Offer:   event.Call.Payload,
				CallID:  event.Call.CallID,
				IsGroup: event.Call.IsGroup,
			},
		}
	case core.EventCallAnswer:
		return proto.Outbound{
			Type: proto.OutboundTypeCallAnswer,
			Data: proto.CallAnswerEvent{
				From:   event.Call.From,
				Answer: event.Call.Payload,
				CallID: event.Call.CallID,
			},
		}
	case core.EventIceCandidate:
		return proto.Outbound{
			Type: proto.OutboundTypeIceCandidate,
			Data: proto.IceCandidateEvent{
				From:      event.Call.From,
				Candidate: event.Call.Payload,
			},
		}
	case core.EventCallRejected:
		return proto.Outbound{
			Type: proto.OutboundTypeCallRejected,
			Data: proto.CallRejectedEvent{From: event.Call.From},
		}
	case core.EventCallEnded:
		return proto.Outbound{
			Type: proto.OutboundTypeCallEnded,
			Data: proto.CallEndedEvent{From: event.Call.From, Reason: event.Call.Reason},
		}
	case core.EventCallFailed:
		return proto.Outbound{
			Type: proto.OutboundTypeCallFailed,
			Data: proto.CallFailedEvent{To: event.Call.To, Reason: event.Call.Reason},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unmapped event"}}
	}
}

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

func invalidFrame() *proto.Error {
	return &proto.Error{Code: core.ErrCodeInvalidFrame, Msg: "unparsable frame data"}
}
