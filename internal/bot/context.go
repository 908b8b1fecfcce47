package bot

import (
	"errors"
	"fmt"
)

// ErrUnsupportedChannelType marks a channel type the identity resolver
// does not know.
var ErrUnsupportedChannelType = errors.New("unsupported channel type")

// ContextType classifies the inbound request.
type ContextType string

const (
	ContextTypeText        ContextType = "TEXT"
	ContextTypeImageCreate ContextType = "IMAGE_CREATE"
)

// ChannelMessage carries the channel-specific sender fields the facade
// reads. Field meaning follows the gateway's message model: OtherUser is
// the peer (user in a private chat, the group in a group chat), ActualUser
// the speaking member inside a group.
type ChannelMessage struct {
	OtherUserID        string
	ActualUserID       string
	OtherUserNickname  string
	ActualUserNickname string
}

// Context is the per-turn invocation context handed in by the gateway.
type Context struct {
	Type      ContextType
	SessionID string
	IsGroup   bool
	NeedReply bool
	Msg       ChannelMessage
	// ReplyTarget is the delivery target for intermediate pushes on the
	// originating channel.
	ReplyTarget string
}

// nicknamed channel families. wx-like channels expose per-user identity and
// nicknames; wechatcom-like ones only a peer id.
var (
	wxLikeChannels = map[string]bool{
		"wx": true, "wework": true, "gewechat": true, "telegram": true,
	}
	wechatcomLikeChannels = map[string]bool{
		"wechatcom_app": true, "wechatmp": true, "wechatmp_service": true, "wechatcom_service": true,
	}
)

// resolveUserID derives the user identity for the configured channel type,
// with the fallback chain each family defines.
func resolveUserID(channelType string, msg ChannelMessage) (string, error) {
	switch {
	case wxLikeChannels[channelType]:
		if msg.OtherUserID != "" {
			return msg.OtherUserID, nil
		}
		return msg.ActualUserID, nil
	case wechatcomLikeChannels[channelType]:
		if msg.OtherUserID != "" {
			return msg.OtherUserID, nil
		}
		return "default", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedChannelType, channelType)
	}
}

// resolveNickname picks the display name for the turn: the speaking member
// in a group, the peer in a private chat. Only wx-like channels carry
// nicknames.
func resolveNickname(channelType string, isGroup bool, msg ChannelMessage) string {
	if !wxLikeChannels[channelType] {
		return ""
	}
	nickname := msg.OtherUserNickname
	if isGroup {
		nickname = msg.ActualUserNickname
	}
	if nickname == "" {
		return "unknown"
	}
	return nickname
}
