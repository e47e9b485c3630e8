package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration has none.
const DefaultTopicPrefix = "pod"

// Topics builds the topics of one device.
type Topics struct {
	Prefix string
	UID    string
}

func (t Topics) base() string {
	prefix := strings.TrimSuffix(t.Prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "/" + t.UID
}

// Command returns the host to device topic.
func (t Topics) Command() string {
	return t.base() + "/cmd"
}

// Event returns the device to host topic.
func (t Topics) Event() string {
	return t.base() + "/evt"
}
