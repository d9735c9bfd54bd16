package http

import (
	"github.com/framepoint/relaychat/internal/core"
	"github.com/framepoint/relaychat/internal/proto"
)

// inboundToCommand maps one wire frame to a hub command. Unknown frame
// types yield ok=false and are silently dropped.
func inboundToCommand(in proto.Inbound) (core.Command, bool) {
	switch in.Type {
	case proto.TypeJoin:
		return core.Command{Kind: core.CommandJoin, Room: in.Room, ClientID: in.ClientID}, true
	case proto.TypeCreateRoom:
		return core.Command{Kind: core.CommandCreateRoom, Room: in.Room}, true
	case proto.TypeDeleteRoom:
		return core.Command{Kind: core.CommandDeleteRoom, Room: in.Room}, true
	case proto.TypeDeleteAllRooms:
		return core.Command{Kind: core.CommandResetRooms}, true
	case proto.TypeClear:
		return core.Command{Kind: core.CommandClear, Room: in.Room}, true
	case proto.TypeGetHistory:
		return core.Command{Kind: core.CommandGetHistory, Room: in.Room}, true
	case proto.TypeMessage, proto.TypeImageMessage:
		return core.Command{
			Kind: core.CommandPublish,
			Room: in.Room,
			Event: &core.Event{
				Type:     in.Type,
				ID:       in.ID,
				TS:       in.TS,
				Text:     in.Text,
				ClientID: in.ClientID,
				Nickname: in.Nickname,
				Room:     in.Room,
				Payload:  in.Payload,
			},
		}, true
	default:
		return core.Command{}, false
	}
}

// frameFromOutbound maps a hub notification to its wire frame.
func frameFromOutbound(out *core.Outbound) any {
	switch out.Kind {
	case core.OutSnapshot:
		return proto.Snapshot{Type: proto.TypeSnapshot, Rooms: out.Rooms, Histories: out.Histories}
	case core.OutRoomHistory:
		return proto.RoomHistory{Type: proto.TypeRoomHistory, Room: out.Room, History: out.History}
	case core.OutRoomCreated:
		return proto.RoomNotice{Type: proto.TypeRoomCreated, Room: out.Room}
	case core.OutRoomDeleted:
		return proto.RoomNotice{Type: proto.TypeRoomDeleted, Room: out.Room}
	case core.OutRoomsReset:
		return proto.RoomsReset{Type: proto.TypeRoomsReset, Rooms: out.Rooms, Histories: out.Histories}
	case core.OutClear:
		return proto.RoomNotice{Type: proto.TypeClear, Room: out.Room}
	case core.OutEvent:
		return out.Event
	default:
		return nil
	}
}
