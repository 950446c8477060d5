package notification

// Channel identifies a delivery medium for a notification.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// AllChannels lists every channel the dispatcher knows about, in the order
// used when a request does not name channels explicitly.
var AllChannels = []Channel{ChannelEmail, ChannelWhatsApp}

// ParseChannels filters raw tags down to known channels, dropping anything
// it does not recognize.
func ParseChannels(raw []string) []Channel {
	channels := make([]Channel, 0, len(raw))
	for _, value := range raw {
		switch Channel(value) {
		case ChannelEmail, ChannelWhatsApp:
			channels = append(channels, Channel(value))
		}
	}
	return channels
}
