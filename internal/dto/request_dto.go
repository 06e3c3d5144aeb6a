package dto

import "encoding/json"

// Inbound request types accepted over the websocket.
const (
	RequestJoinRoom             = "join_room"
	RequestLeaveRoom            = "leave_room"
	RequestGetRooms             = "get_rooms"
	RequestGetHistory           = "get_history"
	RequestGetNotifications     = "get_notifications"
	RequestGetFriends           = "get_friends"
	RequestSendMessage          = "send_message"
	RequestEditMessage          = "edit_message"
	RequestDeleteMessage        = "delete_message"
	RequestTyping               = "typing"
	RequestSearchUsers          = "search_users"
	RequestFriendRequestSend    = "friend_request_send"
	RequestFriendRequestRespond = "friend_request_respond"
	RequestFriendRequestCancel  = "friend_request_cancel"
	RequestFriendRemove         = "friend_remove"
	RequestInviteUser           = "invite_user"
	RequestStartCall            = "start_call"
	RequestRTCOffer             = "rtc_offer"
	RequestRTCAnswer            = "rtc_answer"
	RequestRTCIceCandidate      = "rtc_ice_candidate"
	RequestEndCall              = "end_call"
)

// Request is the tagged envelope for inbound client actions. Data is decoded
// into the per-type payload once the type is known.
type Request struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// JoinRoomRequest subscribes the connection to a room's broadcasts.
type JoinRoomRequest struct {
	Room string `json:"room" validate:"required,max=120"`
}

// LeaveRoomRequest drops the connection's room subscription.
type LeaveRoomRequest struct {
	Room string `json:"room" validate:"required,max=120"`
}

// HistoryRequest pages backward through a room's message log.
type HistoryRequest struct {
	Room   string `json:"room" validate:"required,max=120"`
	Offset int    `json:"offset" validate:"omitempty,min=0"`
	Limit  int    `json:"limit" validate:"omitempty,min=1,max=100"`
}

// SendMessageRequest posts a message into a room.
type SendMessageRequest struct {
	Room       string `json:"room" validate:"required,max=120"`
	Message    string `json:"message" validate:"max=4000"`
	Attachment string `json:"attachment" validate:"omitempty,max=255"`
	ReplyTo    *uint  `json:"reply_to"`
}

// EditMessageRequest rewrites the author's own message.
type EditMessageRequest struct {
	MessageID uint   `json:"message_id" validate:"required"`
	NewText   string `json:"new_text" validate:"required,min=1,max=4000"`
}

// DeleteMessageRequest removes the author's own message.
type DeleteMessageRequest struct {
	MessageID uint `json:"message_id" validate:"required"`
}

// TypingRequest relays the typing indicator to other room subscribers.
type TypingRequest struct {
	Room     string `json:"room" validate:"required,max=120"`
	IsTyping bool   `json:"is_typing"`
}

// SearchUsersRequest looks up users by substring.
type SearchUsersRequest struct {
	Query string `json:"query" validate:"max=80"`
}

// FriendRequestSendRequest opens a friend request toward a user.
type FriendRequestSendRequest struct {
	ToUsername string `json:"to_username" validate:"required,max=80"`
}

// FriendRequestRespondRequest accepts or rejects an incoming request.
type FriendRequestRespondRequest struct {
	FromUsername string `json:"from_username" validate:"required,max=80"`
	Action       string `json:"action" validate:"required,oneof=accept reject"`
}

// FriendRequestCancelRequest withdraws a pending outgoing request.
type FriendRequestCancelRequest struct {
	ToUsername string `json:"to_username" validate:"required,max=80"`
}

// FriendRemoveRequest dissolves a friendship in both directions.
type FriendRemoveRequest struct {
	Username string `json:"username" validate:"required,max=80"`
}

// InviteUserRequest invites a friend into a private channel.
type InviteUserRequest struct {
	Room     string `json:"room" validate:"required,max=120"`
	Username string `json:"username" validate:"required,max=80"`
}

// StartCallRequest begins call signaling toward a single callee.
type StartCallRequest struct {
	To       string `json:"to" validate:"required,max=80"`
	CallType string `json:"call_type" validate:"omitempty,oneof=audio video"`
}

// RTCOfferRequest relays an SDP offer to the callee.
type RTCOfferRequest struct {
	To       string      `json:"to" validate:"required,max=80"`
	SDP      interface{} `json:"sdp" validate:"required"`
	CallType string      `json:"call_type" validate:"omitempty,oneof=audio video"`
}

// RTCAnswerRequest relays an SDP answer to the caller.
type RTCAnswerRequest struct {
	To  string      `json:"to" validate:"required,max=80"`
	SDP interface{} `json:"sdp" validate:"required"`
}

// RTCIceCandidateRequest relays an ICE candidate to the peer.
type RTCIceCandidateRequest struct {
	To        string      `json:"to" validate:"required,max=80"`
	Candidate interface{} `json:"candidate" validate:"required"`
}

// EndCallRequest terminates the call toward the peer.
type EndCallRequest struct {
	To     string `json:"to" validate:"required,max=80"`
	Status string `json:"status" validate:"omitempty,oneof=ended rejected missed"`
}
