package domain

// ChannelType identifies a notification transport.
type ChannelType string

// Channel types.
const (
	ChannelTypeTelegram ChannelType = "telegram"
	ChannelTypeLog      ChannelType = "log"
)
