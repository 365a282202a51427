package loki

// pushRequest is the JSON body of a Loki push.
type pushRequest struct {
	Streams []stream `json:"streams"`
}

// stream is a set of log lines sharing one label set.
type stream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// Entry is a log line queued for Loki.
type Entry struct {
	// Level becomes the "level" stream label.
	Level string
	// UnixNano is the entry timestamp.
	UnixNano int64
	// Line is the serialized log line.
	Line string
}

// line is the JSON shape of a log line.
type line struct {
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Logger  string         `json:"logger,omitempty"`
	Caller  string         `json:"caller,omitempty"`
	Stack   string         `json:"stacktrace,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}
