package constants

const (
	MaxAccountIDLen   = 64
	MaxAssetLen       = 16
	MaxDestinationLen = 256
)

const (
	// Display layouts
	DateTimeFormat  = "2006-01-02 15:04"
	TimestampFormat = "2006-01-02 15:04:05"
)

// Amounts must fit NUMERIC(38, 18) without rounding.
const (
	MaxAmountScale     = 18
	MaxAmountIntDigits = 20
	// MaxAmountInputLen bounds the raw text handed to the decimal parser.
	MaxAmountInputLen = 64
)
