package dto

// Push event types delivered over the websocket. Each type carries exactly
// one payload schema defined below.
const (
	EventRoomsList           = "rooms_list"
	EventMessageHistory      = "message_history"
	EventNewMessage          = "new_message"
	EventMessageUpdated      = "message_updated"
	EventMessageDeleted      = "message_deleted"
	EventUserTyping          = "user_typing"
	EventFriendsList         = "friends_list"
	EventNotificationsList   = "notifications_list"
	EventFriendRequestUpdate = "friend_request_update"
	EventRoomMemberInvited   = "room_member_invited"
	EventRoomInviteError     = "room_invite_error"
	EventStarsBalanceUpdate  = "stars_balance_update"
	EventIncomingCall        = "incoming_call"
	EventRTCOffer            = "rtc_offer"
	EventRTCAnswer           = "rtc_answer"
	EventRTCIceCandidate     = "rtc_ice_candidate"
	EventCallEnded           = "call_ended"
	EventProfileUpdated      = "profile_updated"
	EventUserSearchResults   = "user_search_results"
	EventError               = "error"
)

// Event is the tagged envelope every push is serialized through.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// RoomsListPayload refreshes a user's available room list.
type RoomsListPayload struct {
	Rooms []RoomSummary `json:"rooms"`
}

// MessageHistoryPayload is one page of room history, oldest first.
type MessageHistoryPayload struct {
	Room    string            `json:"room"`
	History []MessageResponse `json:"history"`
}

// MessageUpdatedPayload announces an edit to room subscribers.
type MessageUpdatedPayload struct {
	ID      uint   `json:"id"`
	NewText string `json:"new_text"`
}

// MessageDeletedPayload announces a hard removal to room subscribers.
type MessageDeletedPayload struct {
	MessageID uint `json:"message_id"`
}

// TypingPayload relays a typing indicator to other room subscribers.
type TypingPayload struct {
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

// FriendsListPayload refreshes a user's friend list.
type FriendsListPayload struct {
	Friends []UserSummary `json:"friends"`
}

// NotificationsListPayload carries the newest notifications, newest first.
type NotificationsListPayload struct {
	Notifications []NotificationResponse `json:"notifications"`
}

// FriendRequestUpdatePayload announces a change in friend-request state.
// Kind is one of incoming, accepted, cancelled.
type FriendRequestUpdatePayload struct {
	Kind string `json:"type"`
	User string `json:"user"`
}

// RoomMemberInvitedPayload announces a new member of a private channel. The
// member list is included for subscribers already in the room.
type RoomMemberInvitedPayload struct {
	Room     string        `json:"room"`
	Username string        `json:"username"`
	Members  []UserSummary `json:"members,omitempty"`
}

// RoomInviteErrorPayload reports an invite failure to the inviter only.
type RoomInviteErrorPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// StarsBalanceUpdatePayload pushes a user's new balance to their sessions.
type StarsBalanceUpdatePayload struct {
	Username string `json:"username"`
	Stars    int64  `json:"stars"`
}

// IncomingCallPayload rings the callee.
type IncomingCallPayload struct {
	From     string `json:"from"`
	CallType string `json:"call_type"`
}

// RTCOfferPayload relays an SDP offer. The relay never inspects the SDP.
type RTCOfferPayload struct {
	From     string      `json:"from"`
	SDP      interface{} `json:"sdp"`
	CallType string      `json:"call_type"`
}

// RTCAnswerPayload relays an SDP answer.
type RTCAnswerPayload struct {
	From string      `json:"from"`
	SDP  interface{} `json:"sdp"`
}

// RTCIceCandidatePayload relays an ICE candidate.
type RTCIceCandidatePayload struct {
	From      string      `json:"from"`
	Candidate interface{} `json:"candidate"`
}

// CallEndedPayload terminates the call on the peer's side.
type CallEndedPayload struct {
	Status string `json:"status"`
}

// ProfileUpdatedPayload announces profile changes to connected users.
type ProfileUpdatedPayload struct {
	Username      string `json:"username"`
	Avatar        string `json:"avatar"`
	Status        string `json:"status"`
	Bio           string `json:"bio"`
	FavoriteMusic string `json:"favorite_music"`
}

// UserSearchResultsPayload answers a search_users request.
type UserSearchResultsPayload struct {
	Results []SearchResult `json:"results"`
}

// ErrorPayload reports a request failure to the acting session only.
type ErrorPayload struct {
	Code string `json:"code,omitempty"`
	Msg  string `json:"msg"`
}
