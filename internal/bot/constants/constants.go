package constants

const (
	// Commands.
	PingCommandName = "ping"

	// Ping Command Options.
	PingOptionUser    = "user"
	PingOptionAmount  = "amount"
	PingOptionMethod  = "method"
	PingOptionContext = "context"

	// Confirmation Buttons. The prompt nonce follows the separator.
	PingConfirmButtonPrefix = "ping_confirm"
	PingCancelButtonPrefix  = "ping_cancel"
	CustomIDSeparator       = ":"

	// Stop Button. The owner's user ID follows the prefix.
	StopButtonPrefix = "stop_"

	// Embed Colors.
	ErrorEmbedColor    = 0xFF0000
	SuccessEmbedColor  = 0x00FF00
	ProgressEmbedColor = 0x0000FF
	WarningEmbedColor  = 0xFFA500
	TimeoutEmbedColor  = 0xFF4500
)
