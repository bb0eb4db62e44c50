package channel

const (
	TypeAudioAck = "audio_ack"
	TypeAck      = "ack"
	TypeError    = "error"
)

type AudioAck struct {
	Type  string `json:"type"`
	Bytes int    `json:"bytes"`
}

type Ack struct {
	Type        string `json:"type"`
	MessageType string `json:"message_type"`
	Timestamp   int64  `json:"timestamp"`
}

type ErrorReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
